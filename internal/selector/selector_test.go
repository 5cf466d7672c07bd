package selector

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fencehub/fencehub/internal/dispatch"
	"github.com/fencehub/fencehub/internal/frame"
	"github.com/fencehub/fencehub/internal/pool"
	"github.com/fencehub/fencehub/internal/worker"
)

type fakeBackend struct{ result bool }

func (f *fakeBackend) Off(context.Context, string, []byte) bool    { return f.result }
func (f *fakeBackend) On(context.Context, string, []byte) bool     { return f.result }
func (f *fakeBackend) Reboot(context.Context, string, []byte) bool { return f.result }
func (f *fakeBackend) Close() error                                { return nil }

// newTestServer wires a full selector + worker pool + dispatcher against
// an ephemeral loopback listener, and returns its address plus a stop
// function.
func newTestServer(t *testing.T, result bool) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	p := pool.New(4)
	wp := worker.New(4, nil)
	sel := New(ln, p, wp)
	d := dispatch.New(p, &fakeBackend{result: result}, sel.Reintegrate)
	wp.SetHandle(d.Handle)
	wp.Start(4)
	stopFlag := make(chan struct{})
	signaled := func() bool {
		select {
		case <-stopFlag:
			return true
		default:
			return false
		}
	}
	done := make(chan struct{})
	go func() {
		sel.Run(signaled)
		close(done)
	}()

	return ln.Addr().String(), func() {
		close(stopFlag)
		sel.Wake()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("selector did not shut down")
		}
	}
}

func readFullFrame(t *testing.T, c net.Conn) (frame.Type, []byte) {
	t.Helper()
	hdr := make([]byte, frame.HeaderSize)
	if _, err := readExactly(c, hdr); err != nil {
		t.Fatalf("read header: %v", err)
	}
	typ, length := frame.DecodeHeader(hdr)
	body := make([]byte, int(length)-frame.HeaderSize)
	if len(body) > 0 {
		if _, err := readExactly(c, body); err != nil {
			t.Fatalf("read body: %v", err)
		}
	}
	return typ, body
}

func readExactly(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestEchoRoundTrip(t *testing.T) {
	addr, stop := newTestServer(t, true)
	defer stop()

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	req := make([]byte, frame.HeaderSize)
	frame.EncodeHeader(req, frame.EchoRequest, frame.HeaderSize)
	if _, err := c.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}

	typ, _ := readFullFrame(t, c)
	if typ != frame.EchoReply {
		t.Fatalf("expected EchoReply, got %v", typ)
	}
}

func TestFenceOffSuccess(t *testing.T) {
	addr, stop := newTestServer(t, true)
	defer stop()

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	buf := make([]byte, frame.IOBufferCapacity)
	offset := frame.HeaderSize
	_ = writeField(buf, &offset, "NODENAME=node1")
	_ = writeField(buf, &offset, "SECRET=swordfish")
	frame.EncodeHeader(buf, frame.FenceOff, uint16(offset))
	if _, err := c.Write(buf[:offset]); err != nil {
		t.Fatalf("write: %v", err)
	}

	typ, _ := readFullFrame(t, c)
	if typ != frame.FenceSuccess {
		t.Fatalf("expected FenceSuccess, got %v", typ)
	}

	// Server closes the connection after a fence reply (NextPhase =
	// CANCELED); a subsequent read must observe EOF.
	one := make([]byte, 1)
	if _, err := c.Read(one); err == nil {
		t.Fatal("expected connection to be closed after fence reply")
	}
}

func TestMalformedFrameIsClosed(t *testing.T) {
	addr, stop := newTestServer(t, true)
	defer stop()

	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	// length = 3 is invalid: shorter than the header itself.
	if _, err := c.Write([]byte{0x00, 0x00, 0x00, 0x03}); err != nil {
		t.Fatalf("write: %v", err)
	}

	one := make([]byte, 1)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Read(one); err == nil {
		t.Fatal("expected connection to be closed for malformed frame")
	}
}

func writeField(buf []byte, offset *int, s string) error {
	return frame.WriteField(buf, len(buf), offset, []byte(s))
}
