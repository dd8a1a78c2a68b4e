package actor

import "time"

// syncSink is a ReplySink that hands each reply to the test goroutine
// over a channel, used to make assertions against an actor's async
// mailbox without sleeping.
type syncSink struct {
	ch chan Reply
}

func newSyncSink() *syncSink { return &syncSink{ch: make(chan Reply, 8)} }

func (s *syncSink) Reply(r Reply) { s.ch <- r }

func (s *syncSink) await() Reply {
	select {
	case r := <-s.ch:
		return r
	case <-time.After(2 * time.Second):
		panic("syncSink: timed out waiting for reply")
	}
}

// fakeRouter records every Payload submitted to it, for asserting on
// the rewrite commands (setex's expire leg, rpoplpush's push leg, a SET
// actor's multi-key fan-out) without standing up a real directory.
type fakeRouter struct {
	submitted chan *Payload
}

func newFakeRouter() *fakeRouter { return &fakeRouter{submitted: make(chan *Payload, 16)} }

func (f *fakeRouter) Submit(p *Payload) { f.submitted <- p }

func (f *fakeRouter) awaitSubmit() *Payload {
	select {
	case p := <-f.submitted:
		return p
	case <-time.After(2 * time.Second):
		panic("fakeRouter: timed out waiting for submission")
	}
}
