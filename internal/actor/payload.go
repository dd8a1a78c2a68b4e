// Package actor implements the four value-actor flavors (string, hash,
// list, set) and the transient collector used for multi-key fan-out.
//
// Each actor is a goroutine draining its own mailbox channel in arrival
// order — the same "one goroutine owns a map, drains a chan *Command,
// dispatches through a lookup table" shape as the teacher's
// internal/processor.Processor, just scoped to a single key instead of
// the whole store.
package actor

import (
	"github.com/sirupsen/logrus"
)

// Reply is the value a command resolves to before wire rendering:
// nil, bool, int, string, []string, or an error.
type Reply any

// noReply is delivered internally to mean "already handled, or will be
// answered later" — the unit response from the base spec. Commands that
// park a payload (BLPOP with nothing to pop) or that need no reply at
// all (the directory's internal _rekey message) return this instead of
// a real Reply.
type noReply struct{}

// NoReply is the sentinel a dispatch function returns when Deliver must
// not fire (yet, or ever) for the current Payload.
var NoReply Reply = noReply{}

// ExecError wraps a command-execution failure (as opposed to a protocol
// or routing error) so callers can distinguish the two with errors.As
// instead of string comparison. It still renders to the same "error"
// wire text as every other failure, per the spec's error taxonomy.
type ExecError struct {
	Op  string
	Err error
}

func (e *ExecError) Error() string { return "error" }
func (e *ExecError) Unwrap() error { return e.Err }

// Fail builds an ExecError reply tagged with the failing operation.
func Fail(op string, err error) Reply { return &ExecError{Op: op, Err: err} }

// ReplySink is how an actor answers the client connection that issued a
// Payload.
type ReplySink interface {
	Reply(r Reply)
}

// Response is what a value actor sends to a ToNode sink: the computed
// reply tagged with the key it came from, so a Collector can reassemble
// replies keyed by their origin.
type Response struct {
	Key   string
	Value Reply
}

// NodeSink is how an actor answers another actor (a Collector, or a SET
// actor's own multi-key fan-out).
type NodeSink interface {
	Notify(r Response)
}

// Payload is one immutable request: the command, its key, its argument
// vector, and up to two reply destinations. Built by the connection
// handler for client-issued commands, or by the directory/actors
// themselves when rewriting a command (rpoplpush, smove, setex, mset).
type Payload struct {
	Command  string
	Key      string
	Args     []string
	ToClient ReplySink
	ToNode   NodeSink
}

// Deliver routes reply to whichever sinks are set; rendering it to wire
// text is the sink's job. A NoReply suppresses delivery entirely.
func (p *Payload) Deliver(reply Reply) {
	if _, ok := reply.(noReply); ok {
		return
	}
	if p.ToNode != nil {
		p.ToNode.Notify(Response{Key: p.Key, Value: reply})
	}
	if p.ToClient != nil {
		p.ToClient.Reply(reply)
	}
}

// Ref is a handle actors and the directory use to address any value
// actor without knowing its concrete flavor.
type Ref interface {
	Send(msg any)
}

// Router is how a value actor reaches back into the directory to
// reroute a command at another key (rpoplpush's push leg, smove's add
// leg, setex's expire leg, and the SET actor's multi-key fan-out reads).
type Router interface {
	Submit(p *Payload)
}

// delMsg is the control token that stops an actor's mailbox loop. It
// carries no reply; an actor must never acknowledge it.
type delMsg struct{}

// Del is the sentinel control message the directory sends to retire an
// actor.
var Del any = delMsg{}

func isDel(msg any) bool {
	_, ok := msg.(delMsg)
	return ok
}

func logEntry(log *logrus.Logger, kind, key string) *logrus.Entry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{"actor": kind, "key": key})
}
