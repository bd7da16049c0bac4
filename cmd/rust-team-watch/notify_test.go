package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestNotification_String(t *testing.T) {
	tests := map[string]struct {
		n   notification
		exp string
	}{
		"login":  {n: notification{Kind: notifyLoggedIn, Name: "alice"}, exp: "✅ alice logged in."},
		"logout": {n: notification{Kind: notifyLoggedOut, Name: "alice"}, exp: "❌ alice logged out."},
		"idle":   {n: notification{Kind: notifyIdle, Name: "alice", Seconds: 600}, exp: "🛑 alice has been idle for 10m."},
		"active": {
			n:   notification{Kind: notifyActive, Name: "alice", Seconds: 5400},
			exp: "✅ alice is no longer AFK. (Idle for 1h 30m)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "text", tt.n.String(), tt.exp)
		})
	}
}

func TestOutbox_DropsOldestWhenFull(t *testing.T) {
	box := newOutbox(3, 100)
	for i := 1; i <= 5; i++ {
		box.push(fmt.Sprintf("msg-%d", i))
	}

	testutil.AssertEqual(t, "pending", box.pending(), 3)
	testutil.AssertEqual(t, "dropped", box.dropped, 2)
	for _, exp := range []string{"msg-3", "msg-4", "msg-5"} {
		got, ok := box.pop()
		testutil.AssertEqual(t, "ok", ok, true)
		testutil.AssertEqual(t, "message", got, exp)
	}
	_, ok := box.pop()
	testutil.AssertEqual(t, "empty", ok, false)
}

func TestOutbox_RunDeliversInOrder(t *testing.T) {
	box := newOutbox(16, 1000)
	n := &fakeNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go box.run(ctx, n)

	for i := 0; i < 5; i++ {
		box.push(fmt.Sprintf("msg-%d", i))
	}

	waitFor(t, func() bool { return len(n.sent()) == 5 })
	for i, got := range n.sent() {
		testutil.AssertEqual(t, "message", got, fmt.Sprintf("msg-%d", i))
	}
}

func TestOutbox_DeliveryErrorsAreDropped(t *testing.T) {
	box := newOutbox(16, 1000)
	n := &fakeNotifier{fail: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go box.run(ctx, n)

	box.push("lost")
	waitFor(t, func() bool { return n.tries() == 1 })

	n.mu.Lock()
	n.fail = false
	n.mu.Unlock()
	box.push("delivered")
	waitFor(t, func() bool { return len(n.sent()) == 1 })
	testutil.AssertEqual(t, "message", n.sent()[0], "delivered")
}

func TestOutbox_PushNeverBlocks(t *testing.T) {
	box := newOutbox(1, 0.001)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			box.push("spam")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push blocked")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
