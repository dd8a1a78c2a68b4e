package actor

import "time"

// collectorTimeout bounds how long a Collector waits for every key's
// reply before it gives up and fills the remaining slots with nil.
const collectorTimeout = 2 * time.Second

// Collector is a transient actor joining the per-key replies of a single
// client request that the directory fanned out across N keys (mget)
// back into one ordered reply. It mirrors the per-key
// routing the directory already does for single-key commands, scoped to
// the lifetime of one multi-key request.
type Collector struct {
	origin []string
	client ReplySink
	ch     chan Response
}

// NewCollector creates a Collector for the given ordered key list and
// starts its join goroutine so the directory's own mailbox loop never
// blocks waiting on the fan-out to finish.
func NewCollector(keys []string, client ReplySink) *Collector {
	c := &Collector{
		origin: keys,
		client: client,
		ch:     make(chan Response, len(keys)),
	}
	go c.join()
	return c
}

// Notify implements NodeSink: a value actor posts its reply here,
// tagged with the key it answered for.
func (c *Collector) Notify(r Response) { c.ch <- r }

func (c *Collector) join() {
	results := make(map[string]Reply, len(c.origin))
	deadline := time.After(collectorTimeout)
loop:
	for i := 0; i < len(c.origin); i++ {
		select {
		case r := <-c.ch:
			results[r.Key] = r.Value
		case <-deadline:
			break loop
		}
	}

	out := make([]Reply, len(c.origin))
	for i, k := range c.origin {
		if v, ok := results[k]; ok {
			out[i] = v
		} else {
			out[i] = nil
		}
	}
	c.client.Reply(out)
}
