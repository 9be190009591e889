// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package worker

import (
	"context"
	"net/http"
)

// Completion settles when the handler of a dispatched event returns.
// Until then the event counts as in flight.
type Completion struct {
	done chan struct{}
	err  error
	resp *http.Response
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func settled(resp *http.Response, err error) *Completion {
	c := newCompletion()
	c.settle(resp, err)
	return c
}

func (c *Completion) settle(resp *http.Response, err error) {
	c.resp = resp
	c.err = err
	close(c.done)
}

// Done is closed once the event is resolved.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err reports the handler error. Valid after Done is closed.
func (c *Completion) Err() error {
	<-c.done
	return c.err
}

// Response is the response of a fetch event. Valid after Done is closed.
func (c *Completion) Response() *http.Response {
	<-c.done
	return c.resp
}

// Wait blocks until the event is resolved or ctx ends. An expired ctx only
// stops waiting; the handler keeps running.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
