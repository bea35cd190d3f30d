package ledger

import (
	"context"
	"sync/atomic"
)

// StreamedClient overlays a slot subscription on a base client so
// LatestSlot is answered from streamed notifications instead of an RPC
// round trip per poll. Before the first notification arrives it falls
// through to the base client.
type StreamedClient struct {
	Client
	latest atomic.Int64
}

// NewStreamedClient follows slots until the channel closes. The channel
// is typically a SlotStream's Slots().
func NewStreamedClient(base Client, slots <-chan int64) *StreamedClient {
	c := &StreamedClient{Client: base}
	go func() {
		for slot := range slots {
			if slot > c.latest.Load() {
				c.latest.Store(slot)
			}
		}
	}()
	return c
}

// LatestSlot returns the last streamed slot, or asks the base client
// when none has been observed yet.
func (c *StreamedClient) LatestSlot(ctx context.Context) (int64, error) {
	if slot := c.latest.Load(); slot > 0 {
		return slot, nil
	}
	return c.Client.LatestSlot(ctx)
}
