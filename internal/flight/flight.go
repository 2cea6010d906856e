package flight

import "sync"

// call tracks one in-flight execution and the outcome its waiters share.
type call[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// Group coalesces concurrent executions of the same keyed operation: the
// first caller runs fn, every caller arriving while it is in flight waits for
// and shares the same outcome. Completed keys are forgotten immediately, so a
// failed operation runs again on the next call instead of caching its error.
//
// The zero value is ready to use.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// Do executes fn under key, or waits for an in-flight execution of the same
// key and returns its outcome. The boolean reports whether this caller ran fn
// itself.
func (g *Group[V]) Do(key string, fn func() (V, error)) (V, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[V])
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, false
	}
	c := new(call[V])
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err, true
}
