package clientproto

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/fencehub/fencehub/internal/frame"
)

// fakeServer accepts exactly one connection and replies according to
// respond, which receives the decoded request type/body and returns the
// reply type/body to send back.
func fakeServer(t *testing.T, respond func(frame.Type, []byte) (frame.Type, []byte)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer ln.Close()
		defer conn.Close()

		hdr := make([]byte, frame.HeaderSize)
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		typ, length := frame.DecodeHeader(hdr)
		body := make([]byte, int(length)-frame.HeaderSize)
		if len(body) > 0 {
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
		}

		replyType, replyBody := respond(typ, body)
		buf := make([]byte, frame.IOBufferCapacity)
		offset := frame.HeaderSize
		copy(buf[offset:], replyBody)
		offset += len(replyBody)
		frame.EncodeHeader(buf, replyType, uint16(offset))
		conn.Write(buf[:offset])
	}()
	return ln.Addr().String()
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	return host, port
}

func TestCheckConnectionSuccess(t *testing.T) {
	addr := fakeServer(t, func(frame.Type, []byte) (frame.Type, []byte) {
		return frame.EchoReply, nil
	})
	host, port := splitHostPort(t, addr)

	c, err := Dial("tcp4", host, port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.CheckConnection(time.Second); err != nil {
		t.Fatalf("CheckConnection: %v", err)
	}
}

func TestFenceSuccess(t *testing.T) {
	addr := fakeServer(t, func(typ frame.Type, body []byte) (frame.Type, []byte) {
		if typ != frame.FenceOff {
			t.Errorf("expected FenceOff, got %v", typ)
		}
		return frame.FenceSuccess, nil
	})
	host, port := splitHostPort(t, addr)

	c, err := Dial("tcp4", host, port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ok, err := c.Fence(time.Second, FenceOff, "node1", []byte("secret"))
	if err != nil {
		t.Fatalf("Fence: %v", err)
	}
	if !ok {
		t.Fatal("expected success")
	}
}

func TestFenceUnexpectedReply(t *testing.T) {
	addr := fakeServer(t, func(frame.Type, []byte) (frame.Type, []byte) {
		return frame.EchoReply, nil
	})
	host, port := splitHostPort(t, addr)

	c, err := Dial("tcp4", host, port, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Fence(time.Second, FenceOn, "node1", []byte("secret")); err == nil {
		t.Fatal("expected protocol error for unexpected reply type")
	}
}
