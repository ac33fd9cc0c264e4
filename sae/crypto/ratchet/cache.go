package ratchet

import "github.com/TheusHen/sae/sae/secret"

// skippedCache maps counters to message keys of frames not yet received.
// Once full, the oldest inserted key is evicted and destroyed.
type skippedCache struct {
	capacity int
	keys     map[uint32]*secret.Buffer
	order    []uint32
}

func newSkippedCache(capacity int) *skippedCache {
	return &skippedCache{
		capacity: capacity,
		keys:     make(map[uint32]*secret.Buffer, capacity),
	}
}

func (c *skippedCache) put(counter uint32, key *secret.Buffer) {
	if old, ok := c.keys[counter]; ok {
		old.Destroy()
		c.unlink(counter)
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.keys[oldest].Destroy()
		delete(c.keys, oldest)
	}
	c.keys[counter] = key
	c.order = append(c.order, counter)
}

// get is read-only; the key stays cached until remove.
func (c *skippedCache) get(counter uint32) (*secret.Buffer, bool) {
	k, ok := c.keys[counter]
	return k, ok
}

func (c *skippedCache) has(counter uint32) bool {
	_, ok := c.keys[counter]
	return ok
}

func (c *skippedCache) remove(counter uint32) {
	k, ok := c.keys[counter]
	if !ok {
		return
	}
	k.Destroy()
	delete(c.keys, counter)
	c.unlink(counter)
}

func (c *skippedCache) unlink(counter uint32) {
	for i, v := range c.order {
		if v == counter {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *skippedCache) len() int {
	return len(c.keys)
}

func (c *skippedCache) destroy() {
	for _, k := range c.keys {
		k.Destroy()
	}
	c.keys = map[uint32]*secret.Buffer{}
	c.order = nil
}
