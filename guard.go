package callms

import "sync"

// completion is a single-fire latch for one attempt's outcome. The transport
// goroutine, the attempt deadline, and any late duplicate signal all deliver
// into the same latch; the first delivery wins and every later one is
// discarded. This keeps a timeout racing a slow response from completing one
// attempt twice.
type completion struct {
	once sync.Once
	done chan struct{}
	resp *WireResponse
	err  error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// deliver records the outcome if none has been recorded yet and reports
// whether this delivery won the latch.
func (c *completion) deliver(resp *WireResponse, err error) bool {
	won := false
	c.once.Do(func() {
		c.resp = resp
		c.err = err
		won = true
		close(c.done)
	})
	return won
}

// fired is closed once an outcome has been recorded.
func (c *completion) fired() <-chan struct{} {
	return c.done
}

// outcome blocks until the first delivery and returns it. Reads are safe
// after fired: the close in deliver orders the writes before them.
func (c *completion) outcome() (*WireResponse, error) {
	<-c.done
	return c.resp, c.err
}
