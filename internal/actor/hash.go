package actor

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// HashActor owns a single HASH-typed key's field/value map.
type HashActor struct {
	key     string
	fields  map[string]string
	router  Router
	log     *logrus.Entry
	mailbox chan any
}

// SpawnHash starts a new HASH actor and its goroutine.
func SpawnHash(router Router, key string, log *logrus.Logger) *HashActor {
	a := &HashActor{
		key:     key,
		fields:  make(map[string]string),
		router:  router,
		log:     logEntry(log, "hash", key),
		mailbox: make(chan any, 64),
	}
	go a.run()
	return a
}

func (a *HashActor) Send(msg any) { a.mailbox <- msg }

func (a *HashActor) run() {
	for msg := range a.mailbox {
		if isDel(msg) {
			return
		}
		if p, ok := msg.(*Payload); ok {
			a.dispatch(p)
		}
	}
}

func (a *HashActor) dispatch(p *Payload) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithField("cmd", p.Command).Warnf("recovered from panic: %v", r)
			p.Deliver(Fail(p.Command, fmt.Errorf("panic: %v", r)))
		}
	}()
	p.Deliver(a.exec(p))
}

func (a *HashActor) exec(p *Payload) Reply {
	switch p.Command {
	case "hget":
		v, ok := a.fields[p.Args[0]]
		if !ok {
			return nil
		}
		return v
	case "hset":
		_, existed := a.fields[p.Args[0]]
		a.fields[p.Args[0]] = p.Args[1]
		if existed {
			return 0
		}
		return 1
	case "hsetnx":
		if _, existed := a.fields[p.Args[0]]; existed {
			return 0
		}
		a.fields[p.Args[0]] = p.Args[1]
		return 1
	case "hdel":
		removed := 0
		for _, f := range p.Args {
			if _, ok := a.fields[f]; ok {
				delete(a.fields, f)
				removed++
			}
		}
		return removed
	case "hexists":
		if _, ok := a.fields[p.Args[0]]; ok {
			return 1
		}
		return 0
	case "hlen":
		return len(a.fields)
	case "hkeys":
		out := make([]string, 0, len(a.fields))
		for f := range a.fields {
			out = append(out, f)
		}
		return out
	case "hvals":
		out := make([]string, 0, len(a.fields))
		for _, v := range a.fields {
			out = append(out, v)
		}
		return out
	case "hgetall":
		out := make([]string, 0, len(a.fields)*2)
		for f, v := range a.fields {
			out = append(out, f, v)
		}
		return out
	case "hmget":
		out := make([]string, len(p.Args))
		for i, f := range p.Args {
			if v, ok := a.fields[f]; ok {
				out[i] = v
			} else {
				out[i] = "nil"
			}
		}
		return out
	case "hmset":
		for i := 0; i+1 < len(p.Args); i += 2 {
			a.fields[p.Args[i]] = p.Args[i+1]
		}
		return "OK"
	case "hincrby":
		delta, err := strconv.ParseInt(p.Args[1], 10, 64)
		if err != nil {
			return Fail("hincrby", err)
		}
		return a.incrField(p.Args[0], float64(delta), false)
	case "hincrbyfloat":
		delta, err := strconv.ParseFloat(p.Args[1], 64)
		if err != nil {
			return Fail("hincrbyfloat", err)
		}
		return a.incrField(p.Args[0], delta, true)
	case "hscan":
		keys := make([]string, 0, len(a.fields))
		for f := range a.fields {
			keys = append(keys, f)
		}
		return runScan(keys, parseScanArgs(p.Args))
	case "_rekey":
		a.key = p.Args[0]
		return NoReply
	default:
		return Fail(p.Command, fmt.Errorf("unsupported hash command %q", p.Command))
	}
}

// incrField treats a missing field as "0" per the spec, then formats the
// result as an integer or float depending on the calling command.
func (a *HashActor) incrField(field string, delta float64, float bool) Reply {
	cur := a.fields[field]
	if cur == "" {
		cur = "0"
	}
	n, err := strconv.ParseFloat(cur, 64)
	if err != nil {
		return Fail("hincrby", err)
	}
	n += delta
	var out string
	if float {
		out = strconv.FormatFloat(n, 'f', -1, 64)
	} else {
		out = strconv.FormatInt(int64(n), 10)
	}
	a.fields[field] = out
	return out
}
