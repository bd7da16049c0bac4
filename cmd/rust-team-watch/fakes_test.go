package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

var epoch = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeLink replays scripted roster responses; a nil entry fails that poll.
type fakeLink struct {
	mu           sync.Mutex
	connectErrs  []error
	connectCalls int
	info         serverInfo
	rosters      []*teamInfo
	polls        int
	chat         []func(chatMessage)
}

func (f *fakeLink) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeLink) GetInfo(context.Context) (serverInfo, error) {
	return f.info, nil
}

func (f *fakeLink) GetTeamInfo(context.Context) (teamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.rosters) == 0 {
		return teamInfo{}, nil
	}
	next := f.rosters[0]
	f.rosters = f.rosters[1:]
	if next == nil {
		return teamInfo{}, errTransport
	}
	return *next, nil
}

func (f *fakeLink) OnTeamChat(h func(chatMessage)) {
	f.mu.Lock()
	f.chat = append(f.chat, h)
	f.mu.Unlock()
}

func (f *fakeLink) Close() error { return nil }

type fakeNotifier struct {
	mu       sync.Mutex
	texts    []string
	files    []string
	fail     bool
	attempts int
}

func (f *fakeNotifier) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fail {
		return errors.New("delivery failed")
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) SendFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("delivery failed")
	}
	f.files = append(f.files, path)
	return nil
}

func (f *fakeNotifier) tries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func member(id uint64, name string, online bool, x, y float64) teamMember {
	return teamMember{ID: id, Name: name, Online: online, X: x, Y: y}
}

func kinds(ns []notification) []notificationKind {
	out := make([]notificationKind, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Kind)
	}
	return out
}
