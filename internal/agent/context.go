package agent

import "sync"

// Agent is the platform-side participant using the console.
type Agent struct {
	ID   string
	Name string
}

// Context is the read-only view of the current agent shared by the
// controllers. It is injected at construction, never a package global; the
// online flag is observable so the composer can gate sending the moment it
// flips.
type Context struct {
	mu     sync.RWMutex
	agent  Agent
	online bool
	subs   map[int]func(online bool)
	next   int
}

// NewContext creates an agent context.
func NewContext(a Agent, online bool) *Context {
	return &Context{
		agent:  a,
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

// Agent returns the current agent identity.
func (c *Context) Agent() Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agent
}

// Online reports whether the agent is flagged online.
func (c *Context) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// SetOnline updates the flag and notifies observers of a change.
func (c *Context) SetOnline(online bool) {
	c.mu.Lock()
	if c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	observers := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(online)
	}
}

// Subscribe registers an observer for online-flag changes and returns its
// removal function.
func (c *Context) Subscribe(fn func(online bool)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
