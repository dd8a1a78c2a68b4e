package actor

import (
	"container/list"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// blockedEntry is one parked BLPOP/BRPOP/BRPOPLPUSH payload. Mirrors the
// teacher's handler.BlockedClient/BlockingManager pair (a container/list
// FIFO with O(1) removal via the stored *list.Element), scoped down to a
// single key's own actor instead of a process-wide manager.
type blockedEntry struct {
	payload *Payload
	cmd     string // "blpop" | "brpop" | "brpoplpush"
	destKey string // brpoplpush only
	timer   *time.Timer
	done    bool
}

// blockTimeout is delivered to the actor's own mailbox when a parked
// payload's timer fires — timers never act directly on actor state,
// they just enqueue an ordinary message, preserving single-threaded
// access.
type blockTimeout struct {
	elem *list.Element
}

// ListActor owns a single LIST-typed key's sequence and the FIFO of
// payloads blocked waiting for an element to arrive.
type ListActor struct {
	key     string
	v       []string
	blocked *list.List
	router  Router
	log     *logrus.Entry
	mailbox chan any
}

// SpawnList starts a new LIST actor and its goroutine.
func SpawnList(router Router, key string, log *logrus.Logger) *ListActor {
	a := &ListActor{
		key:     key,
		blocked: list.New(),
		router:  router,
		log:     logEntry(log, "list", key),
		mailbox: make(chan any, 64),
	}
	go a.run()
	return a
}

func (a *ListActor) Send(msg any) { a.mailbox <- msg }

func (a *ListActor) run() {
	for msg := range a.mailbox {
		switch m := msg.(type) {
		case delMsg:
			return
		case *Payload:
			a.dispatch(m)
		case blockTimeout:
			a.handleTimeout(m.elem)
		}
	}
}

// enlarges reports whether cmd is one of the commands that must drain
// the blocked FIFO after delivering its own reply (§4.2.3).
func enlarges(cmd string) bool {
	switch cmd {
	case "lpush", "rpush", "lpushx", "rpushx", "linsert", "lset":
		return true
	default:
		return false
	}
}

func (a *ListActor) dispatch(p *Payload) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("cmd", p.Command).Warnf("recovered from panic: %v", r)
			p.Deliver(Fail(p.Command, fmt.Errorf("panic: %v", r)))
		}
	}()
	reply := a.exec(p)
	p.Deliver(reply)
	if enlarges(p.Command) {
		a.wakeBlocked()
	}
}

func resolveIndex(idx, length int) int {
	if idx < 0 {
		idx += length
	}
	return idx
}

func (a *ListActor) exec(p *Payload) Reply {
	switch p.Command {
	case "lpush", "lpushx":
		for _, v := range p.Args {
			a.v = append([]string{v}, a.v...)
		}
		return len(a.v)
	case "rpush", "rpushx":
		a.v = append(a.v, p.Args...)
		return len(a.v)
	case "lpop":
		if len(a.v) == 0 {
			return nil
		}
		v := a.v[0]
		a.v = a.v[1:]
		return v
	case "rpop":
		if len(a.v) == 0 {
			return nil
		}
		v := a.v[len(a.v)-1]
		a.v = a.v[:len(a.v)-1]
		return v
	case "lindex":
		idx, err := strconv.Atoi(p.Args[0])
		if err != nil {
			return Fail("lindex", err)
		}
		idx = resolveIndex(idx, len(a.v))
		if idx < 0 || idx >= len(a.v) {
			return nil
		}
		return a.v[idx]
	case "lset":
		idx, err := strconv.Atoi(p.Args[0])
		if err != nil {
			return Fail("lset", err)
		}
		idx = resolveIndex(idx, len(a.v))
		if idx < 0 || idx >= len(a.v) {
			return Fail("lset", fmt.Errorf("index out of range"))
		}
		a.v[idx] = p.Args[1]
		return "OK"
	case "lrem":
		idx, err := strconv.Atoi(p.Args[0])
		if err != nil {
			return Fail("lrem", err)
		}
		idx = resolveIndex(idx, len(a.v))
		if idx < 0 || idx >= len(a.v) {
			return 0
		}
		a.v = append(a.v[:idx], a.v[idx+1:]...)
		return 1
	case "lrange":
		return a.slice(p.Args[0], p.Args[1])
	case "ltrim":
		a.v = a.slice(p.Args[0], p.Args[1])
		return "OK"
	case "llen":
		return len(a.v)
	case "linsert":
		return a.linsert(p.Args)
	case "rpoplpush":
		return a.rpoplpush(p.Args[0])
	case "blpop", "brpop", "brpoplpush":
		return a.blockOrImmediate(p)
	case "_rekey":
		a.key = p.Args[0]
		return NoReply
	default:
		return Fail(p.Command, fmt.Errorf("unsupported list command %q", p.Command))
	}
}

func (a *ListActor) slice(iArg, jArg string) []string {
	i, err1 := strconv.Atoi(iArg)
	j, err2 := strconv.Atoi(jArg)
	if err1 != nil || err2 != nil {
		return []string{}
	}
	i = resolveIndex(i, len(a.v))
	j = resolveIndex(j, len(a.v))
	if i < 0 {
		i = 0
	}
	if j > len(a.v) {
		j = len(a.v)
	}
	if i >= j {
		return []string{}
	}
	out := make([]string, j-i)
	copy(out, a.v[i:j])
	return out
}

func (a *ListActor) linsert(args []string) Reply {
	before := strings.EqualFold(args[0], "before")
	pivot, value := args[1], args[2]
	idx := -1
	for i, v := range a.v {
		if v == pivot {
			idx = i
			break
		}
	}
	if idx == -1 {
		return -1
	}
	at := idx
	if !before {
		at = idx + 1
	}
	a.v = append(a.v[:at], append([]string{value}, a.v[at:]...)...)
	return len(a.v)
}

func (a *ListActor) rpoplpush(dst string) Reply {
	if len(a.v) == 0 {
		return nil
	}
	v := a.v[len(a.v)-1]
	a.v = a.v[:len(a.v)-1]
	a.router.Submit(&Payload{Command: "lpush", Key: dst, Args: []string{v}})
	return v
}

// blockOrImmediate implements §4.2.3's shared BLPOP/BRPOP/BRPOPLPUSH
// routine: serve immediately if data is present, otherwise park the
// payload and arm a one-shot timeout.
func (a *ListActor) blockOrImmediate(p *Payload) Reply {
	if len(a.v) > 0 {
		return a.execNonBlocking(p.Command, p.Args)
	}

	timeoutArg := p.Args[len(p.Args)-1]
	secs, err := strconv.ParseFloat(timeoutArg, 64)
	if err != nil {
		return Fail(p.Command, err)
	}

	entry := &blockedEntry{payload: p, cmd: p.Command}
	if p.Command == "brpoplpush" {
		entry.destKey = p.Args[0]
	}
	elem := a.blocked.PushBack(entry)
	entry.timer = time.AfterFunc(time.Duration(secs*float64(time.Second)), func() {
		a.mailbox <- blockTimeout{elem: elem}
	})
	return NoReply
}

// execNonBlocking runs the non-blocking form of a blocking command
// (strip the leading "b"), reusing exec's own command handlers.
func (a *ListActor) execNonBlocking(cmd string, args []string) Reply {
	switch cmd {
	case "blpop":
		return a.exec(&Payload{Command: "lpop", Key: a.key})
	case "brpop":
		return a.exec(&Payload{Command: "rpop", Key: a.key})
	case "brpoplpush":
		return a.exec(&Payload{Command: "rpoplpush", Key: a.key, Args: []string{args[0]}})
	default:
		return Fail(cmd, fmt.Errorf("unknown blocking command %q", cmd))
	}
}

// wakeBlocked gives fair, FIFO wake-up to parked payloads after any
// command that enlarges the list, per §4.2.3.
func (a *ListActor) wakeBlocked() {
	for len(a.v) > 0 && a.blocked.Len() > 0 {
		elem := a.blocked.Front()
		a.blocked.Remove(elem)
		entry := elem.Value.(*blockedEntry)
		if entry.done {
			continue
		}
		entry.done = true
		entry.timer.Stop()

		var args []string
		if entry.cmd == "brpoplpush" {
			args = []string{entry.destKey}
		}
		reply := a.execNonBlocking(entry.cmd, args)
		entry.payload.Deliver(reply)
	}
}

// handleTimeout fires when a parked payload's wait expires. A no-op if
// the payload was already served by wakeBlocked in the meantime.
func (a *ListActor) handleTimeout(elem *list.Element) {
	entry := elem.Value.(*blockedEntry)
	if entry.done {
		return
	}
	entry.done = true
	a.blocked.Remove(elem)
	entry.payload.Deliver(nil)
}
