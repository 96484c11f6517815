package httpclient

import (
	"context"
	"sync"
)

// Call is the asynchronous handle of one in-flight request. It settles
// exactly once, with either a Result or an error.
//
// Example:
//
//	call, err := client.Get(ctx, "users")
//	if err != nil {
//	    return err // ErrInvalidArgument
//	}
//	res, err := call.Wait()
type Call struct {
	desc RequestDescriptor
	curl string

	once   sync.Once
	done   chan struct{}
	result *Result
	err    error
}

func newCall(desc RequestDescriptor) *Call {
	return &Call{
		desc: desc,
		done: make(chan struct{}),
	}
}

// settle records the resolution. Only the first settlement counts.
func (c *Call) settle(res *Result, err error) {
	c.once.Do(func() {
		c.result, c.err = res, err
		close(c.done)
	})
}

// Done is closed when the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call settles.
func (c *Call) Wait() (*Result, error) {
	<-c.done
	return c.result, c.err
}

// Await blocks until the call settles or ctx ends. Giving up on ctx does
// not cancel the call; cancel the context passed to the request instead.
func (c *Call) Await(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Descriptor returns the resolved request this call was built from.
func (c *Call) Descriptor() RequestDescriptor {
	return c.desc
}

// Curl returns an equivalent curl command, or "" unless the client was
// created WithGenerateCurl(true).
func (c *Call) Curl() string {
	return c.curl
}
