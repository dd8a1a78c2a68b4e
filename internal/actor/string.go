package actor

import (
	"fmt"
	"math/bits"
	"strconv"

	"github.com/sirupsen/logrus"
)

// StringActor owns a single STRING-typed key's value and serially
// executes every command routed to it.
type StringActor struct {
	key     string
	v       string
	router  Router
	log     *logrus.Entry
	mailbox chan any
}

// SpawnString starts a new STRING actor and its goroutine.
func SpawnString(router Router, key string, log *logrus.Logger) *StringActor {
	a := &StringActor{
		key:     key,
		router:  router,
		log:     logEntry(log, "string", key),
		mailbox: make(chan any, 64),
	}
	go a.run()
	return a
}

// Send enqueues msg on the actor's mailbox.
func (a *StringActor) Send(msg any) { a.mailbox <- msg }

func (a *StringActor) run() {
	for msg := range a.mailbox {
		if isDel(msg) {
			return
		}
		if p, ok := msg.(*Payload); ok {
			a.dispatch(p)
		}
	}
}

func (a *StringActor) dispatch(p *Payload) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("cmd", p.Command).Warnf("recovered from panic: %v", r)
			p.Deliver(Fail(p.Command, fmt.Errorf("panic: %v", r)))
		}
	}()
	p.Deliver(a.exec(p))
}

func valueOrZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func (a *StringActor) exec(p *Payload) Reply {
	switch p.Command {
	case "get":
		return a.v
	case "set":
		a.v = p.Args[0]
		return "OK"
	case "setnx":
		// The directory gates the pre-existence check (§4.3); by the
		// time a setnx payload reaches here it always behaves like set.
		a.v = p.Args[0]
		return "OK"
	case "getset":
		old := a.v
		a.v = p.Args[0]
		return old
	case "append":
		a.v += p.Args[0]
		return a.v
	case "getrange":
		return a.getrange(p.Args)
	case "setrange":
		return a.setrange(p.Args)
	case "strlen":
		return len(a.v)
	case "incr":
		return a.addInt(1)
	case "decr":
		return a.addInt(-1)
	case "incrby":
		n, err := strconv.ParseInt(p.Args[0], 10, 64)
		if err != nil {
			return Fail("incrby", err)
		}
		return a.addInt(n)
	case "decrby":
		n, err := strconv.ParseInt(p.Args[0], 10, 64)
		if err != nil {
			return Fail("decrby", err)
		}
		return a.addInt(-n)
	case "incrbyfloat":
		return a.addFloat(p.Args[0])
	case "bitcount":
		return a.bitcount(p.Args)
	case "setex":
		a.v = p.Args[1]
		a.router.Submit(&Payload{Command: "expire", Key: "keys", Args: []string{a.key, p.Args[0]}})
		return "OK"
	case "psetex":
		a.v = p.Args[1]
		a.router.Submit(&Payload{Command: "pexpire", Key: "keys", Args: []string{a.key, p.Args[0]}})
		return "OK"
	case "bitop", "bitpos", "getbit", "setbit":
		return "Not implemented"
	case "_rekey":
		a.key = p.Args[0]
		return NoReply
	default:
		return Fail(p.Command, fmt.Errorf("unsupported string command %q", p.Command))
	}
}

func (a *StringActor) addInt(delta int64) Reply {
	n, err := strconv.ParseInt(valueOrZero(a.v), 10, 64)
	if err != nil {
		return Fail("incr", err)
	}
	n += delta
	a.v = strconv.FormatInt(n, 10)
	return a.v
}

func (a *StringActor) addFloat(arg string) Reply {
	delta, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return Fail("incrbyfloat", err)
	}
	n, err := strconv.ParseFloat(valueOrZero(a.v), 64)
	if err != nil {
		return Fail("incrbyfloat", err)
	}
	n += delta
	a.v = strconv.FormatFloat(n, 'f', -1, 64)
	return a.v
}

func (a *StringActor) getrange(args []string) Reply {
	i, err1 := strconv.Atoi(args[0])
	j, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return Fail("getrange", fmt.Errorf("invalid range"))
	}
	if i < 0 {
		i = 0
	}
	if j > len(a.v) {
		j = len(a.v)
	}
	if i >= j || i >= len(a.v) {
		return ""
	}
	return a.v[i:j]
}

// setrange overlays s at offset i, zero-padding v up to i if it is
// shorter, and replaces len(s) bytes at that offset — real Redis
// semantics, not the base spec's flagged 1-char-patch bug (DESIGN.md
// Open Question 2).
func (a *StringActor) setrange(args []string) Reply {
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 {
		return Fail("setrange", fmt.Errorf("invalid offset"))
	}
	s := args[1]
	buf := []byte(a.v)
	if need := i + len(s); need > len(buf) {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[i:], s)
	a.v = string(buf)
	return len(a.v)
}

func (a *StringActor) bitcount(args []string) Reply {
	data := []byte(a.v)
	if len(args) == 2 {
		i, err1 := strconv.Atoi(args[0])
		j, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return Fail("bitcount", fmt.Errorf("invalid range"))
		}
		if i < 0 {
			i = 0
		}
		if j+1 < len(data) {
			data = data[:j+1]
		}
		if i < len(data) {
			data = data[i:]
		} else {
			data = nil
		}
	}
	count := 0
	for _, b := range data {
		count += bits.OnesCount8(b)
	}
	return count
}
