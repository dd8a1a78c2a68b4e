package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListActorPushPop(t *testing.T) {
	a := SpawnList(newFakeRouter(), "l", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "rpush", Key: "l", Args: []string{"a", "b"}, ToClient: sink})
	assert.Equal(t, 2, sink.await())

	a.Send(&Payload{Command: "lpush", Key: "l", Args: []string{"z"}, ToClient: sink})
	assert.Equal(t, 3, sink.await())

	a.Send(&Payload{Command: "lrange", Key: "l", Args: []string{"0", "3"}, ToClient: sink})
	assert.Equal(t, []string{"z", "a", "b"}, sink.await())

	a.Send(&Payload{Command: "lpop", Key: "l", ToClient: sink})
	assert.Equal(t, "z", sink.await())
}

func TestListActorLIndexLSetLInsert(t *testing.T) {
	a := SpawnList(newFakeRouter(), "l", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "rpush", Key: "l", Args: []string{"a", "b", "c"}, ToClient: sink})
	sink.await()

	a.Send(&Payload{Command: "lindex", Key: "l", Args: []string{"-1"}, ToClient: sink})
	assert.Equal(t, "c", sink.await())

	a.Send(&Payload{Command: "lset", Key: "l", Args: []string{"1", "B"}, ToClient: sink})
	assert.Equal(t, "OK", sink.await())

	a.Send(&Payload{Command: "linsert", Key: "l", Args: []string{"BEFORE", "B", "x"}, ToClient: sink})
	assert.Equal(t, 4, sink.await())

	a.Send(&Payload{Command: "lrange", Key: "l", Args: []string{"0", "4"}, ToClient: sink})
	assert.Equal(t, []string{"a", "x", "B", "c"}, sink.await())
}

func TestListActorRPopLPushReroutesThroughRouter(t *testing.T) {
	router := newFakeRouter()
	a := SpawnList(router, "src", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "rpush", Key: "src", Args: []string{"a", "b"}, ToClient: sink})
	sink.await()

	a.Send(&Payload{Command: "rpoplpush", Key: "src", Args: []string{"dst"}, ToClient: sink})
	assert.Equal(t, "b", sink.await())

	rewritten := router.awaitSubmit()
	assert.Equal(t, "lpush", rewritten.Command)
	assert.Equal(t, "dst", rewritten.Key)
	assert.Equal(t, []string{"b"}, rewritten.Args)
}

func TestListActorBLPopServesImmediatelyWhenNonEmpty(t *testing.T) {
	a := SpawnList(newFakeRouter(), "l", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "rpush", Key: "l", Args: []string{"only"}, ToClient: sink})
	sink.await()

	a.Send(&Payload{Command: "blpop", Key: "l", Args: []string{"5"}, ToClient: sink})
	assert.Equal(t, "only", sink.await())
}

func TestListActorBLPopParksThenWakesOnPush(t *testing.T) {
	a := SpawnList(newFakeRouter(), "l", nil)
	blockSink := newSyncSink()
	pushSink := newSyncSink()

	a.Send(&Payload{Command: "blpop", Key: "l", Args: []string{"5"}, ToClient: blockSink})

	// Give the blpop a moment to park before pushing, so this exercises
	// the wake path rather than racing the immediate-serve path.
	time.Sleep(20 * time.Millisecond)

	a.Send(&Payload{Command: "rpush", Key: "l", Args: []string{"woken"}, ToClient: pushSink})

	assert.Equal(t, "woken", blockSink.await(), "parked blpop must be served FCFS on push")
	assert.Equal(t, 1, pushSink.await(), "rpush still replies with the new length to its own caller")
}

func TestListActorBLPopTimesOut(t *testing.T) {
	a := SpawnList(newFakeRouter(), "l", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "blpop", Key: "l", Args: []string{"0.05"}, ToClient: sink})

	select {
	case r := <-sink.ch:
		assert.Nil(t, r)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for blpop timeout delivery")
	}
}

func TestListActorFIFOWakeOrder(t *testing.T) {
	a := SpawnList(newFakeRouter(), "l", nil)
	first := newSyncSink()
	second := newSyncSink()
	pushSink := newSyncSink()

	a.Send(&Payload{Command: "blpop", Key: "l", Args: []string{"5"}, ToClient: first})
	time.Sleep(10 * time.Millisecond)
	a.Send(&Payload{Command: "blpop", Key: "l", Args: []string{"5"}, ToClient: second})
	time.Sleep(10 * time.Millisecond)

	a.Send(&Payload{Command: "rpush", Key: "l", Args: []string{"x", "y"}, ToClient: pushSink})

	assert.Equal(t, "x", first.await(), "first blocked payload must be served first")
	assert.Equal(t, "y", second.await())
}
