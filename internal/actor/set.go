package actor

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// fanoutTimeout bounds how long a SET actor will wait on the directory
// for other keys' members before giving up on a multi-key operation.
const fanoutTimeout = 2 * time.Second

// SetActor owns a single SET-typed key's member set.
type SetActor struct {
	key     string
	members map[string]bool
	router  Router
	log     *logrus.Entry
	mailbox chan any
}

// SpawnSet starts a new SET actor and its goroutine.
func SpawnSet(router Router, key string, log *logrus.Logger) *SetActor {
	a := &SetActor{
		key:     key,
		members: make(map[string]bool),
		router:  router,
		log:     logEntry(log, "set", key),
		mailbox: make(chan any, 64),
	}
	go a.run()
	return a
}

func (a *SetActor) Send(msg any) { a.mailbox <- msg }

func (a *SetActor) run() {
	for msg := range a.mailbox {
		if isDel(msg) {
			return
		}
		if p, ok := msg.(*Payload); ok {
			a.dispatch(p)
		}
	}
}

func (a *SetActor) dispatch(p *Payload) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("cmd", p.Command).Warnf("recovered from panic: %v", r)
			p.Deliver(Fail(p.Command, fmt.Errorf("panic: %v", r)))
		}
	}()
	p.Deliver(a.exec(p))
}

func (a *SetActor) slice() []string {
	out := make([]string, 0, len(a.members))
	for m := range a.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (a *SetActor) exec(p *Payload) Reply {
	switch p.Command {
	case "sadd":
		added := 0
		for _, m := range p.Args {
			if !a.members[m] {
				a.members[m] = true
				added++
			}
		}
		return added
	case "srem":
		removed := 0
		for _, m := range p.Args {
			if a.members[m] {
				delete(a.members, m)
				removed++
			}
		}
		return removed
	case "scard":
		return len(a.members)
	case "sismember":
		if a.members[p.Args[0]] {
			return 1
		}
		return 0
	case "smembers":
		return a.slice()
	case "srandmember":
		return a.randMembers(p.Args)
	case "spop":
		return a.pop(p.Args)
	case "smove":
		return a.move(p.Args)
	case "sscan":
		return runScan(a.slice(), parseScanArgs(p.Args))
	case "sdiff":
		others, ok := a.fetch(p.Args)
		if !ok {
			return Fail("sdiff", fmt.Errorf("timed out waiting on member sets"))
		}
		return diff(a.slice(), others)
	case "sinter":
		others, ok := a.fetch(p.Args)
		if !ok {
			return Fail("sinter", fmt.Errorf("timed out waiting on member sets"))
		}
		return inter(a.slice(), others)
	case "sunion":
		others, ok := a.fetch(p.Args)
		if !ok {
			return Fail("sunion", fmt.Errorf("timed out waiting on member sets"))
		}
		return union(a.slice(), others)
	case "sdiffstore", "sinterstore", "sunionstore":
		return a.storeAlgebra(p.Command, p.Args)
	case "_rekey":
		a.key = p.Args[0]
		return NoReply
	default:
		return Fail(p.Command, fmt.Errorf("unsupported set command %q", p.Command))
	}
}

func (a *SetActor) randMembers(args []string) Reply {
	if len(a.members) == 0 {
		if len(args) == 0 {
			return nil
		}
		return []string{}
	}
	pool := a.slice()
	if len(args) == 0 {
		return pool[rand.Intn(len(pool))]
	}
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return Fail("srandmember", err)
	}
	if count >= 0 {
		if count > len(pool) {
			count = len(pool)
		}
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		return pool[:count]
	}
	n := -count
	out := make([]string, n)
	for i := range out {
		out[i] = pool[rand.Intn(len(pool))]
	}
	return out
}

func (a *SetActor) pop(args []string) Reply {
	if len(args) == 0 {
		for m := range a.members {
			delete(a.members, m)
			return m
		}
		return nil
	}
	count, err := strconv.Atoi(args[0])
	if err != nil {
		return Fail("spop", err)
	}
	out := make([]string, 0, count)
	for m := range a.members {
		if len(out) >= count {
			break
		}
		delete(a.members, m)
		out = append(out, m)
	}
	return out
}

func (a *SetActor) move(args []string) Reply {
	dst, member := args[0], args[1]
	if !a.members[member] {
		return 0
	}
	delete(a.members, member)
	a.router.Submit(&Payload{Command: "sadd", Key: dst, Args: []string{member}})
	return 1
}

// storeAlgebra implements sdiffstore/sinterstore/sunionstore. The
// directory routes these to the destination key's own actor (creating
// it if absent), so `a` already *is* the destination — args is the
// full list of source keys, none of which is `a` itself. It fetches
// every source key's members, reduces across them (the first source
// is the base, the rest narrow/exclude/extend it), and overwrites its
// own member set with the result directly rather than round-tripping
// through the router.
func (a *SetActor) storeAlgebra(cmd string, keys []string) Reply {
	if len(keys) == 0 {
		a.members = make(map[string]bool)
		return 0
	}
	sets, ok := a.fetch(keys)
	if !ok {
		return Fail(cmd, fmt.Errorf("timed out waiting on member sets"))
	}
	base, others := sets[0], sets[1:]
	var result []string
	switch cmd {
	case "sdiffstore":
		result = diff(base, others)
	case "sinterstore":
		result = inter(base, others)
	case "sunionstore":
		result = union(base, others)
	}
	a.members = toSet(result)
	return len(result)
}

// fanoutSink collects Responses for a single in-flight multi-key request.
type fanoutSink struct {
	ch chan Response
}

func (f *fanoutSink) Notify(r Response) { f.ch <- r }

// fetch asks the directory for every other key's membership and blocks
// this actor's own goroutine (not its mailbox) until all answers arrive
// or fanoutTimeout elapses — the one place a value actor synchronously
// waits on another actor.
func (a *SetActor) fetch(keys []string) ([][]string, bool) {
	if len(keys) == 0 {
		return nil, true
	}
	sink := &fanoutSink{ch: make(chan Response, len(keys))}
	for _, k := range keys {
		a.router.Submit(&Payload{Command: "smembers", Key: k, ToNode: sink})
	}
	results := make(map[string][]string, len(keys))
	deadline := time.After(fanoutTimeout)
	for i := 0; i < len(keys); i++ {
		select {
		case r := <-sink.ch:
			if members, ok := r.Value.([]string); ok {
				results[r.Key] = members
			}
		case <-deadline:
			return nil, false
		}
	}
	out := make([][]string, len(keys))
	for i, k := range keys {
		out[i] = results[k]
	}
	return out, true
}

func toSet(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

func diff(base []string, others [][]string) []string {
	excl := make(map[string]bool)
	for _, o := range others {
		for _, v := range o {
			excl[v] = true
		}
	}
	out := make([]string, 0, len(base))
	for _, v := range base {
		if !excl[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func inter(base []string, others [][]string) []string {
	cur := toSet(base)
	for _, o := range others {
		next := toSet(o)
		for v := range cur {
			if !next[v] {
				delete(cur, v)
			}
		}
	}
	out := make([]string, 0, len(cur))
	for v := range cur {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func union(base []string, others [][]string) []string {
	all := toSet(base)
	for _, o := range others {
		for _, v := range o {
			all[v] = true
		}
	}
	out := make([]string, 0, len(all))
	for v := range all {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
