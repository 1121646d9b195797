package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Lockstep/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestRoom(host SessionID, conn SignalConnection) *Room {
	return NewRoom(&domain.Room{ID: "TEST01", Name: "test"}, host, conn, time.Now())
}

func TestAddMemberRejectsDuplicates(t *testing.T) {
	hostConn := &fakeConn{}
	r := newTestRoom("host", hostConn)

	if !r.AddMember("peer", &fakeConn{}) {
		t.Error("first add should succeed")
	}
	if r.AddMember("peer", &fakeConn{}) {
		t.Error("duplicate add should be rejected")
	}
	if r.AddMember("host", &fakeConn{}) {
		t.Error("host is already a member")
	}
	if got := r.MemberCount(); got != 2 {
		t.Errorf("MemberCount() = %d, want 2", got)
	}
}

func TestBroadcastRequiresActiveVideo(t *testing.T) {
	hostConn := &fakeConn{}
	r := newTestRoom("host", hostConn)
	peerConn := &fakeConn{}
	r.AddMember("peer", peerConn)

	_, err := r.Broadcast("host", Frame(`{}`), true)
	if !errors.Is(err, ErrNoActiveVideo) {
		t.Fatalf("err = %v, want ErrNoActiveVideo", err)
	}
	if hostConn.count() != 0 || peerConn.count() != 0 {
		t.Error("no frames should be delivered to any member")
	}

	url := "http://v"
	r.Patch(domain.VideoUpdate{URL: &url}, time.Now())
	res, err := r.Broadcast("host", Frame(`{}`), true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.SentTo != 2 {
		t.Errorf("SentTo = %d, want 2", res.SentTo)
	}
}

func TestBroadcastOriginExclusion(t *testing.T) {
	hostConn := &fakeConn{}
	r := newTestRoom("host", hostConn)
	peerConn := &fakeConn{}
	r.AddMember("peer", peerConn)
	url := "http://v"
	r.Patch(domain.VideoUpdate{URL: &url}, time.Now())

	if _, err := r.Broadcast("host", Frame(`{}`), false); err != nil {
		t.Fatal(err)
	}
	if hostConn.count() != 0 {
		t.Error("origin should not receive its own relay")
	}
	if peerConn.count() != 1 {
		t.Errorf("peer frames = %d, want 1", peerConn.count())
	}
}

func TestBroadcastSurvivesClosedConnection(t *testing.T) {
	hostConn := &fakeConn{}
	r := newTestRoom("host", hostConn)
	deadConn := &fakeConn{}
	deadConn.Close()
	r.AddMember("peer", deadConn)
	url := "http://v"
	r.Patch(domain.VideoUpdate{URL: &url}, time.Now())

	res, err := r.Broadcast("host", Frame(`{}`), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.SentTo != 1 || len(res.Dropped) != 1 || res.Dropped[0] != "peer" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestUpdateAndBroadcastAuthoritativeBypassesGate(t *testing.T) {
	hostConn := &fakeConn{}
	r := newTestRoom("host", hostConn)
	url := "http://v"
	now := time.Now()
	r.Patch(domain.VideoUpdate{URL: &url}, now)

	// A stop clears the URL but the announcement must still go out.
	var empty string
	stopped := false
	res, err := r.UpdateAndBroadcast("host", domain.VideoUpdate{URL: &empty, Playing: &stopped}, now, Frame(`{}`), true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.SentTo != 1 {
		t.Errorf("SentTo = %d, want 1", res.SentTo)
	}
	if got := r.State().URL; got != "" {
		t.Errorf("URL = %q, want cleared", got)
	}

	// A raw relay into the now-idle room is refused, but the patch
	// itself still lands.
	playing := true
	_, err = r.UpdateAndBroadcast("host", domain.VideoUpdate{Playing: &playing}, now, Frame(`{}`), false)
	if !errors.Is(err, ErrNoActiveVideo) {
		t.Errorf("err = %v, want ErrNoActiveVideo", err)
	}
	if !r.State().Playing {
		t.Error("patch should apply even when the fan-out is refused")
	}
}
