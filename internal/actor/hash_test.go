package actor

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashActorSetGetDel(t *testing.T) {
	a := SpawnHash(newFakeRouter(), "h", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "hset", Key: "h", Args: []string{"f1", "v1"}, ToClient: sink})
	assert.Equal(t, 1, sink.await(), "new field returns 1")

	a.Send(&Payload{Command: "hset", Key: "h", Args: []string{"f1", "v2"}, ToClient: sink})
	assert.Equal(t, 0, sink.await(), "overwriting field returns 0")

	a.Send(&Payload{Command: "hget", Key: "h", Args: []string{"f1"}, ToClient: sink})
	assert.Equal(t, "v2", sink.await())

	a.Send(&Payload{Command: "hdel", Key: "h", Args: []string{"f1", "missing"}, ToClient: sink})
	assert.Equal(t, 1, sink.await())
}

func TestHashActorSetNX(t *testing.T) {
	a := SpawnHash(newFakeRouter(), "h", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "hsetnx", Key: "h", Args: []string{"f", "v1"}, ToClient: sink})
	assert.Equal(t, 1, sink.await())

	a.Send(&Payload{Command: "hsetnx", Key: "h", Args: []string{"f", "v2"}, ToClient: sink})
	assert.Equal(t, 0, sink.await())

	a.Send(&Payload{Command: "hget", Key: "h", Args: []string{"f"}, ToClient: sink})
	assert.Equal(t, "v1", sink.await(), "hsetnx must not overwrite an existing field")
}

func TestHashActorGetAllAndKeys(t *testing.T) {
	a := SpawnHash(newFakeRouter(), "h", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "hmset", Key: "h", Args: []string{"a", "1", "b", "2"}, ToClient: sink})
	assert.Equal(t, "OK", sink.await())

	a.Send(&Payload{Command: "hkeys", Key: "h", ToClient: sink})
	keys := sink.await().([]string)
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)

	a.Send(&Payload{Command: "hlen", Key: "h", ToClient: sink})
	assert.Equal(t, 2, sink.await())

	a.Send(&Payload{Command: "hgetall", Key: "h", ToClient: sink})
	all := sink.await().([]string)
	pairs := make(map[string]string)
	for i := 0; i+1 < len(all); i += 2 {
		pairs[all[i]] = all[i+1]
	}
	assert.Len(t, all, 4)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, pairs)
}

func TestHashActorIncrByTreatsMissingFieldAsZero(t *testing.T) {
	a := SpawnHash(newFakeRouter(), "h", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "hincrby", Key: "h", Args: []string{"counter", "5"}, ToClient: sink})
	assert.Equal(t, "5", sink.await())

	a.Send(&Payload{Command: "hincrbyfloat", Key: "h", Args: []string{"counter", "1.5"}, ToClient: sink})
	assert.Equal(t, "6.5", sink.await())
}

func TestHashActorHMGetMissingFieldsAreNil(t *testing.T) {
	a := SpawnHash(newFakeRouter(), "h", nil)
	sink := newSyncSink()

	a.Send(&Payload{Command: "hset", Key: "h", Args: []string{"f1", "v1"}, ToClient: sink})
	sink.await()

	a.Send(&Payload{Command: "hmget", Key: "h", Args: []string{"f1", "f2"}, ToClient: sink})
	out := sink.await().([]string)
	assert.Equal(t, []string{"v1", "nil"}, out)
}
