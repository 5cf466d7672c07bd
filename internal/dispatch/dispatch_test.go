package dispatch

import (
	"context"
	"testing"

	"github.com/fencehub/fencehub/internal/conn"
	"github.com/fencehub/fencehub/internal/frame"
	"github.com/fencehub/fencehub/internal/pool"
)

type fakeBackend struct {
	result bool
}

func (f *fakeBackend) Off(context.Context, string, []byte) bool    { return f.result }
func (f *fakeBackend) On(context.Context, string, []byte) bool     { return f.result }
func (f *fakeBackend) Reboot(context.Context, string, []byte) bool { return f.result }
func (f *fakeBackend) Close() error                                { return nil }

func buildFenceFrame(t *testing.T, c *conn.Conn, typ frame.Type, nodename, secret string) {
	t.Helper()
	offset := frame.HeaderSize
	if nodename != "" {
		if err := frame.WriteField(c.IO, len(c.IO), &offset, []byte("NODENAME="+nodename)); err != nil {
			t.Fatalf("WriteField nodename: %v", err)
		}
	}
	if secret != "" {
		if err := frame.WriteField(c.IO, len(c.IO), &offset, []byte("SECRET="+secret)); err != nil {
			t.Fatalf("WriteField secret: %v", err)
		}
	}
	frame.EncodeHeader(c.IO, typ, uint16(offset))
	c.Type = typ
	c.Length = uint16(offset)
	c.HaveHeader = true
}

func TestHandleEcho(t *testing.T) {
	p := pool.New(1)
	c := p.Allocate()
	c.Type = frame.EchoRequest
	c.Length = frame.HeaderSize
	c.HaveHeader = true

	var gotIdx = -1
	d := New(p, &fakeBackend{result: true}, func(idx int) { gotIdx = idx })
	d.Handle(c.Index)

	if gotIdx != c.Index {
		t.Fatalf("expected reintegrate called with %d, got %d", c.Index, gotIdx)
	}
	if c.Type != frame.EchoReply || c.Length != 4 {
		t.Fatalf("unexpected reply frame: type=%v length=%d", c.Type, c.Length)
	}
	if c.Phase != conn.Send || c.NextPhase != conn.Recv {
		t.Fatalf("unexpected phases: phase=%v next=%v", c.Phase, c.NextPhase)
	}
}

func TestHandleFenceOffSuccess(t *testing.T) {
	p := pool.New(1)
	c := p.Allocate()
	buildFenceFrame(t, c, frame.FenceOff, "node7", "s3cret")

	d := New(p, &fakeBackend{result: true}, func(int) {})
	d.Handle(c.Index)

	if c.Type != frame.FenceSuccess {
		t.Fatalf("expected FenceSuccess, got %v", c.Type)
	}
	if c.Phase != conn.Send || c.NextPhase != conn.Canceled {
		t.Fatalf("unexpected phases: phase=%v next=%v", c.Phase, c.NextPhase)
	}
}

func TestHandleFenceFailure(t *testing.T) {
	p := pool.New(1)
	c := p.Allocate()
	buildFenceFrame(t, c, frame.FenceReboot, "node7", "s3cret")

	d := New(p, &fakeBackend{result: false}, func(int) {})
	d.Handle(c.Index)

	if c.Type != frame.FenceFail {
		t.Fatalf("expected FenceFail, got %v", c.Type)
	}
}

func TestHandleFenceMissingNodename(t *testing.T) {
	p := pool.New(1)
	c := p.Allocate()
	buildFenceFrame(t, c, frame.FenceOn, "", "s3cret")

	d := New(p, &fakeBackend{result: true}, func(int) {})
	d.Handle(c.Index)

	if c.Phase != conn.Canceled {
		t.Fatalf("expected CANCELED for missing nodename, got %v", c.Phase)
	}
}

func TestHandleUnknownType(t *testing.T) {
	p := pool.New(1)
	c := p.Allocate()
	c.Type = frame.FenceSuccess // server-direction type from a client is a violation
	c.Length = frame.HeaderSize
	c.HaveHeader = true

	d := New(p, &fakeBackend{result: true}, func(int) {})
	d.Handle(c.Index)

	if c.Phase != conn.Canceled {
		t.Fatalf("expected CANCELED for server-direction type, got %v", c.Phase)
	}
}

func TestHandleMalformedField(t *testing.T) {
	p := pool.New(1)
	c := p.Allocate()
	offset := frame.HeaderSize
	_ = frame.WriteField(c.IO, len(c.IO), &offset, []byte("NOEQUALSSIGN"))
	frame.EncodeHeader(c.IO, frame.FenceOff, uint16(offset))
	c.Type = frame.FenceOff
	c.Length = uint16(offset)
	c.HaveHeader = true

	d := New(p, &fakeBackend{result: true}, func(int) {})
	d.Handle(c.Index)

	if c.Phase != conn.Canceled {
		t.Fatalf("expected CANCELED for malformed field, got %v", c.Phase)
	}
}
