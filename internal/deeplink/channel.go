package deeplink

import "sync"

// Channel is a process-wide single-slot holder for the most recent
// unconsumed parsed link. It is a slot, not a queue: a new publish
// unconditionally overwrites any unconsumed prior value. The instance is
// dependency-injected from the application root; there is no ambient
// global.
type Channel struct {
	mu   sync.Mutex
	link *ParsedDeepLink
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{}
}

// Publish stores the link, replacing any unconsumed one (last-link-wins).
func (c *Channel) Publish(link *ParsedDeepLink) {
	if link == nil {
		return
	}
	c.mu.Lock()
	c.link = link
	c.mu.Unlock()
}

// Peek returns the pending link without consuming it, or nil.
func (c *Channel) Peek() *ParsedDeepLink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

// Clear drops the pending link. Consumers call it exactly once after each
// resolution attempt, success or failure, so the same link is never
// processed twice.
func (c *Channel) Clear() {
	c.mu.Lock()
	c.link = nil
	c.mu.Unlock()
}
