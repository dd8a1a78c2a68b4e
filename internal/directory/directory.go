// Package directory implements the singleton directory actor: the key
// table, lazy actor creation, type-mismatch gating, expiry, and every
// KEYS-category command that reasons about the whole key table rather
// than one key's value.
//
// Structurally this is the teacher's processor.Processor — one
// goroutine owning a map, draining a buffered channel, dispatching by a
// static table — retargeted so the map holds actor handles instead of
// values, and a per-key timer expires keys instead of periodicCleanup
// sweeping everything.
package directory

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"keyvaultd/internal/actor"
	"keyvaultd/internal/registry"
)

// NodeEntry is one live key: its actor handle, the type it was created
// as, and its expiry (nil means no TTL).
type NodeEntry struct {
	Ref      actor.Ref
	Kind     string
	ExpireAt *time.Time
	timer    *time.Timer
}

// Directory is the singleton routing actor. Non-KEYS commands pass
// through it once to find (or lazily create) the owning value actor;
// KEYS-category commands are executed here directly.
type Directory struct {
	entries map[string]*NodeEntry
	mailbox chan *actor.Payload
	log     *logrus.Logger
}

// New creates a Directory and starts its goroutine.
func New(log *logrus.Logger) *Directory {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Directory{
		entries: make(map[string]*NodeEntry),
		mailbox: make(chan *actor.Payload, 1024),
		log:     log,
	}
}

// Start launches the directory's goroutine. Separate from New so a
// caller can wire dependencies before the mailbox starts draining.
func (d *Directory) Start() { go d.run() }

// Submit implements actor.Router: any actor, or the connection handler,
// hands a Payload to the directory this way.
func (d *Directory) Submit(p *actor.Payload) { d.mailbox <- p }

func (d *Directory) run() {
	for p := range d.mailbox {
		d.route(p)
	}
}

// route implements §4.3: KEYS-category commands execute directly
// against the key table, everything else goes through Family A
// routing to find or create the owning actor.
func (d *Directory) route(p *actor.Payload) {
	if registry.CategoryOf(p.Command) == registry.OwnKeys {
		d.execKeys(p)
		return
	}
	d.routeToActor(p)
}

// routeToActor implements the Family A algorithm from §4.3. Followed
// literally, its step order makes setnx silently overwrite an existing
// key of the same type and makes lpushx/rpushx unable to ever push to
// an existing list — both contradict the prose describing those same
// commands elsewhere in the section, so this follows the prose instead
// (DESIGN.md Open Question 5): setnx is a no-op against any existing
// key, lpushx/rpushx are a no-op against a missing key, and both checks
// run before the default/create branches.
func (d *Directory) routeToActor(p *actor.Payload) {
	owning := registry.NodeType(p.Command)
	entry, exists := d.liveEntry(p.Key)

	if exists && entry.Kind != owning {
		p.Deliver(fmt.Sprintf("Invalid command %s for %s", p.Command, entry.Kind))
		return
	}

	if p.Command == "setnx" && exists {
		p.Deliver(0)
		return
	}
	if (p.Command == "lpushx" || p.Command == "rpushx") && !exists {
		p.Deliver(0)
		return
	}

	if exists {
		entry.Ref.Send(p)
		return
	}

	if def, ok := registry.Default(p.Command, p.Args); ok {
		p.Deliver(def)
		return
	}

	d.spawn(p.Key, owning).Send(p)
}

// liveEntry looks up key, lazily clearing it first if its TTL has
// already elapsed — the same trigger point as the teacher's
// getExistingSet/getOrCreateSet family: the first access after expiry
// observes a missing key, not a stale one.
func (d *Directory) liveEntry(key string) (*NodeEntry, bool) {
	e, ok := d.entries[key]
	if !ok {
		return nil, false
	}
	if e.ExpireAt != nil && !e.ExpireAt.After(time.Now()) {
		d.removeKey(key)
		return nil, false
	}
	return e, true
}

func (d *Directory) spawn(key, owning string) actor.Ref {
	var ref actor.Ref
	switch owning {
	case registry.OwnString:
		ref = actor.SpawnString(d, key, d.log)
	case registry.OwnHash:
		ref = actor.SpawnHash(d, key, d.log)
	case registry.OwnList:
		ref = actor.SpawnList(d, key, d.log)
	case registry.OwnSet:
		ref = actor.SpawnSet(d, key, d.log)
	}
	d.entries[key] = &NodeEntry{Ref: ref, Kind: owning}
	d.log.WithFields(logrus.Fields{"key": key, "kind": owning}).Debug("spawned actor")
	return ref
}

// removeKey retires key's actor and cancels any pending expiry timer.
func (d *Directory) removeKey(key string) {
	e, ok := d.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.Ref.Send(actor.Del)
	delete(d.entries, key)
}

// armExpiry (re)schedules key's timer. The timer callback never
// touches directory state directly: it posts an ordinary del Payload
// back onto the directory's own mailbox, so an expiry firing is
// serialized exactly like any client command (§5) and a timer that
// loses the race to a manual del/rename is a safe no-op (Stop just
// fails silently, the mailbox message for the stale key is ignored by
// the next lookup finding it already gone).
func (d *Directory) armExpiry(key string, at time.Time) {
	e, ok := d.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	captured := at
	e.ExpireAt = &captured
	e.timer = time.AfterFunc(time.Until(at), func() {
		d.mailbox <- &actor.Payload{Command: "del", Args: []string{key}}
	})
}

func (d *Directory) clearExpiry(key string) bool {
	e, ok := d.entries[key]
	if !ok || e.ExpireAt == nil {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.ExpireAt = nil
	e.timer = nil
	return true
}

// execKeys dispatches every KEYS-category command. These reason about
// the whole key table, so the directory executes them synchronously
// in its own goroutine rather than forwarding to a value actor.
func (d *Directory) execKeys(p *actor.Payload) {
	switch p.Command {
	case "exists":
		p.Deliver(d.cmdExists(p.Args))
	case "type":
		p.Deliver(d.cmdType(p.Args[0]))
	case "randomkey":
		p.Deliver(d.cmdRandomKey())
	case "keys":
		p.Deliver(d.cmdKeys())
	case "scan":
		p.Deliver(d.cmdScan(p.Args))
	case "ttl":
		p.Deliver(d.cmdTTL(p.Args[0], time.Second))
	case "pttl":
		p.Deliver(d.cmdTTL(p.Args[0], time.Millisecond))
	case "expire":
		p.Deliver(d.cmdExpireIn(p.Args, time.Second))
	case "pexpire":
		p.Deliver(d.cmdExpireIn(p.Args, time.Millisecond))
	case "expireat":
		p.Deliver(d.cmdExpireAt(p.Args, time.Second))
	case "pexpireat":
		p.Deliver(d.cmdExpireAt(p.Args, time.Millisecond))
	case "persist":
		_, exists := d.liveEntry(p.Args[0])
		d.clearExpiry(p.Args[0])
		if exists {
			p.Deliver(1)
		} else {
			p.Deliver(0)
		}
	case "rename":
		p.Deliver(d.cmdRename(p.Args[0], p.Args[1], false))
	case "renamenx":
		p.Deliver(d.cmdRename(p.Args[0], p.Args[1], true))
	case "del":
		p.Deliver(d.cmdDel(p.Args))
	case "mget":
		d.cmdMGet(p)
	case "mset":
		p.Deliver(d.cmdMSet(p.Args))
	case "msetnx":
		p.Deliver(d.cmdMSetNX(p.Args))
	case "sort":
		p.Deliver("Not implemented")
	default:
		p.Deliver(actor.Fail(p.Command, fmt.Errorf("unsupported keys command %q", p.Command)))
	}
}

func (d *Directory) cmdExists(keys []string) int {
	n := 0
	for _, k := range keys {
		if _, ok := d.liveEntry(k); ok {
			n++
		}
	}
	return n
}

func (d *Directory) cmdType(key string) string {
	e, ok := d.liveEntry(key)
	if !ok {
		return "nil"
	}
	return e.Kind
}

func (d *Directory) cmdRandomKey() actor.Reply {
	d.sweepExpired()
	if len(d.entries) == 0 {
		return nil
	}
	idx := rand.Intn(len(d.entries))
	i := 0
	for k := range d.entries {
		if i == idx {
			return k
		}
		i++
	}
	return nil
}

func (d *Directory) cmdKeys() []string {
	d.sweepExpired()
	out := make([]string, 0, len(d.entries))
	for k := range d.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d *Directory) cmdScan(args []string) []string {
	d.sweepExpired()
	names := make([]string, 0, len(d.entries))
	for k := range d.entries {
		names = append(names, k)
	}
	return actor.RunScan(names, args)
}

// sweepExpired evicts every key whose TTL has already elapsed. Called
// before any command that enumerates the whole table (keys, scan,
// randomkey) so a stale entry can never be listed.
func (d *Directory) sweepExpired() {
	now := time.Now()
	for k, e := range d.entries {
		if e.ExpireAt != nil && !e.ExpireAt.After(now) {
			d.removeKey(k)
		}
	}
}

func (d *Directory) cmdTTL(key string, unit time.Duration) int {
	e, ok := d.liveEntry(key)
	if !ok {
		return -2
	}
	if e.ExpireAt == nil {
		return -1
	}
	remaining := time.Until(*e.ExpireAt)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining / unit)
}

func (d *Directory) cmdExpireIn(args []string, unit time.Duration) int {
	key := args[0]
	if _, ok := d.liveEntry(key); !ok {
		return 0
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0
	}
	d.armExpiry(key, time.Now().Add(time.Duration(n)*unit))
	return 1
}

func (d *Directory) cmdExpireAt(args []string, unit time.Duration) int {
	key := args[0]
	if _, ok := d.liveEntry(key); !ok {
		return 0
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0
	}
	var at time.Time
	if unit == time.Second {
		at = time.Unix(n, 0)
	} else {
		at = time.UnixMilli(n)
	}
	d.armExpiry(key, at)
	return 1
}

// cmdRename moves oldKey's actor reference to newKey in the key table,
// re-arms any pending expiry under the new name, and tells the actor
// its own key name changed (so it re-addresses itself correctly on any
// future self-referencing rewrite, e.g. setex's expire leg). nx gates
// renamenx's "only if newkey is free" rule.
func (d *Directory) cmdRename(oldKey, newKey string, nx bool) actor.Reply {
	if oldKey == newKey {
		return actor.Fail("rename", fmt.Errorf("source and destination are the same key"))
	}
	src, ok := d.liveEntry(oldKey)
	if !ok {
		return actor.Fail("rename", fmt.Errorf("no such key %q", oldKey))
	}
	if _, dstExists := d.liveEntry(newKey); dstExists {
		if nx {
			return 0
		}
		d.removeKey(newKey)
	}
	delete(d.entries, oldKey)
	d.entries[newKey] = src
	if src.ExpireAt != nil {
		d.armExpiry(newKey, *src.ExpireAt)
	}
	src.Ref.Send(&actor.Payload{Command: "_rekey", Key: newKey, Args: []string{newKey}})
	if nx {
		return 1
	}
	return "OK"
}

func (d *Directory) cmdDel(keys []string) int {
	n := 0
	for _, k := range keys {
		if _, ok := d.liveEntry(k); ok {
			d.removeKey(k)
			n++
		}
	}
	return n
}

// cmdMGet fans a "get" out across every requested key via a transient
// Collector, re-submitting each as an ordinary routed payload so it
// gets the same default/type-mismatch handling as a direct client get.
func (d *Directory) cmdMGet(p *actor.Payload) {
	collector := actor.NewCollector(p.Args, p.ToClient)
	for _, k := range p.Args {
		d.Submit(&actor.Payload{Command: "get", Key: k, ToNode: collector})
	}
}

func (d *Directory) cmdMSet(args []string) actor.Reply {
	for i := 0; i+1 < len(args); i += 2 {
		d.routeToActor(&actor.Payload{Command: "set", Key: args[i], Args: []string{args[i+1]}})
	}
	return "OK"
}

func (d *Directory) cmdMSetNX(args []string) actor.Reply {
	for i := 0; i+1 < len(args); i += 2 {
		if _, ok := d.liveEntry(args[i]); ok {
			return 0
		}
	}
	for i := 0; i+1 < len(args); i += 2 {
		d.routeToActor(&actor.Payload{Command: "set", Key: args[i], Args: []string{args[i+1]}})
	}
	return 1
}
