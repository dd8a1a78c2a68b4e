package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"keyvaultd/internal/actor"
)

// syncSink is a minimal actor.ReplySink for driving the directory
// synchronously from tests: Send a Payload, then await its reply.
type syncSink struct {
	ch chan actor.Reply
}

func newSyncSink() *syncSink { return &syncSink{ch: make(chan actor.Reply, 1)} }

func (s *syncSink) Reply(r actor.Reply) { s.ch <- r }

func (s *syncSink) await(t *testing.T) actor.Reply {
	t.Helper()
	select {
	case r := <-s.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for directory reply")
		return nil
	}
}

func newTestDirectory() *Directory {
	d := New(nil)
	d.Start()
	return d
}

func TestDirectorySetThenGetLazilySpawnsActor(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "k", Args: []string{"v"}, ToClient: sink})
	assert.Equal(t, "OK", sink.await(t))

	d.Submit(&actor.Payload{Command: "get", Key: "k", ToClient: sink})
	assert.Equal(t, "v", sink.await(t))
}

func TestDirectoryGetAgainstMissingKeyUsesDefault(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "get", Key: "missing", ToClient: sink})
	assert.Nil(t, sink.await(t))
}

func TestDirectoryTypeMismatchIsRejected(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "sadd", Key: "k", Args: []string{"m"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "lpush", Key: "k", Args: []string{"v"}, ToClient: sink})
	assert.Equal(t, "Invalid command lpush for set", sink.await(t))
}

func TestDirectorySetNXIsNoopAgainstExistingKey(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "k", Args: []string{"first"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "setnx", Key: "k", Args: []string{"second"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t))

	d.Submit(&actor.Payload{Command: "get", Key: "k", ToClient: sink})
	assert.Equal(t, "first", sink.await(t))
}

func TestDirectoryLPushXIsNoopAgainstMissingKey(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "lpushx", Key: "nope", Args: []string{"v"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t))

	d.Submit(&actor.Payload{Command: "exists", Key: "", Args: []string{"nope"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t), "lpushx against a missing key must not create it")
}

func TestDirectoryLPushXPushesOntoExistingList(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "rpush", Key: "l", Args: []string{"a"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "lpushx", Key: "l", Args: []string{"b"}, ToClient: sink})
	assert.Equal(t, 2, sink.await(t))
}

func TestDirectoryExpireAndTTL(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "k", Args: []string{"v"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "expire", Args: []string{"k", "100"}, ToClient: sink})
	assert.Equal(t, 1, sink.await(t))

	d.Submit(&actor.Payload{Command: "ttl", Args: []string{"k"}, ToClient: sink})
	ttl := sink.await(t).(int)
	assert.True(t, ttl > 0 && ttl <= 100)

	d.Submit(&actor.Payload{Command: "persist", Args: []string{"k"}, ToClient: sink})
	assert.Equal(t, 1, sink.await(t))

	d.Submit(&actor.Payload{Command: "ttl", Args: []string{"k"}, ToClient: sink})
	assert.Equal(t, -1, sink.await(t))
}

func TestDirectoryTTLOnMissingKeyIsMinusTwo(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "ttl", Args: []string{"nope"}, ToClient: sink})
	assert.Equal(t, -2, sink.await(t))
}

func TestDirectoryExpireEvictsKeyAfterTTL(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "k", Args: []string{"v"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "pexpire", Args: []string{"k", "20"}, ToClient: sink})
	assert.Equal(t, 1, sink.await(t))

	time.Sleep(100 * time.Millisecond)

	d.Submit(&actor.Payload{Command: "exists", Args: []string{"k"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t))
}

func TestDirectoryRenameMovesKeyAndRejectsSelfRename(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "old", Args: []string{"v"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "rename", Args: []string{"old", "old"}, ToClient: sink})
	_, isErr := sink.await(t).(*actor.ExecError)
	assert.True(t, isErr, "renaming a key to itself must error")

	d.Submit(&actor.Payload{Command: "rename", Args: []string{"old", "new"}, ToClient: sink})
	assert.Equal(t, "OK", sink.await(t))

	d.Submit(&actor.Payload{Command: "get", Key: "new", ToClient: sink})
	assert.Equal(t, "v", sink.await(t))

	d.Submit(&actor.Payload{Command: "exists", Args: []string{"old"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t))
}

func TestDirectoryRenameNXRefusesExistingDestination(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "a", Args: []string{"1"}, ToClient: sink})
	sink.await(t)
	d.Submit(&actor.Payload{Command: "set", Key: "b", Args: []string{"2"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "renamenx", Args: []string{"a", "b"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t))
}

func TestDirectoryDelRemovesMultipleKeys(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "a", Args: []string{"1"}, ToClient: sink})
	sink.await(t)
	d.Submit(&actor.Payload{Command: "set", Key: "b", Args: []string{"2"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "del", Args: []string{"a", "b", "missing"}, ToClient: sink})
	assert.Equal(t, 2, sink.await(t))
}

func TestDirectoryMGetReturnsNilForMissingKeysInOrder(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "a", Args: []string{"1"}, ToClient: sink})
	sink.await(t)
	d.Submit(&actor.Payload{Command: "set", Key: "c", Args: []string{"3"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "mget", Args: []string{"a", "b", "c"}, ToClient: sink})
	out := sink.await(t).([]actor.Reply)
	assert.Equal(t, []actor.Reply{"1", nil, "3"}, out)
}

func TestDirectoryMSetAndMSetNX(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "mset", Args: []string{"a", "1", "b", "2"}, ToClient: sink})
	assert.Equal(t, "OK", sink.await(t))

	d.Submit(&actor.Payload{Command: "msetnx", Args: []string{"b", "x", "c", "3"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(t), "msetnx must refuse when any target key already exists")

	d.Submit(&actor.Payload{Command: "get", Key: "c", ToClient: sink})
	assert.Nil(t, sink.await(t), "msetnx must not have created any key on failure")
}

func TestDirectoryKeysAndScanListExistingKeys(t *testing.T) {
	d := newTestDirectory()
	sink := newSyncSink()

	d.Submit(&actor.Payload{Command: "set", Key: "a", Args: []string{"1"}, ToClient: sink})
	sink.await(t)
	d.Submit(&actor.Payload{Command: "set", Key: "b", Args: []string{"2"}, ToClient: sink})
	sink.await(t)

	d.Submit(&actor.Payload{Command: "keys", ToClient: sink})
	assert.Equal(t, []string{"a", "b"}, sink.await(t))

	d.Submit(&actor.Payload{Command: "scan", Args: []string{"0"}, ToClient: sink})
	assert.Equal(t, []string{"0", "a", "b"}, sink.await(t))
}
