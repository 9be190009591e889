// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/latsarcode/latsar/src/netshare"
	"github.com/latsarcode/latsar/src/worker"
)

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// fetchRequest rewrites req onto the application origin, so the cache key
// of a page request is the same as the one used at precache time.
func (data *Data) fetchRequest(req *http.Request) (*http.Request, error) {
	target := data.Origin.ResolveReference(&url.URL{
		Path:     req.URL.Path,
		RawQuery: req.URL.RawQuery,
	})

	out, err := http.NewRequestWithContext(req.Context(), req.Method, target.String(), req.Body)
	if err != nil {
		return nil, err
	}
	out.Header = req.Header.Clone()
	out.ContentLength = req.ContentLength

	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	return out, nil
}

// Pattern: everything not routed elsewhere
func (data *Data) handleFetch(rw http.ResponseWriter, req *http.Request) error {
	out, err := data.fetchRequest(req)
	if err != nil {
		return fmt.Errorf("%w: %v", netshare.ErrBadRequest, err)
	}

	c := data.Worker.Dispatch(req.Context(), &worker.FetchEvent{Request: out})
	if err := c.Wait(req.Context()); err != nil {
		go closeLate(c)
		return fmt.Errorf("%w: %v", netshare.ErrBadGateway, err)
	}

	resp := c.Response()
	if resp == nil {
		return fmt.Errorf("%w: empty response for %s", netshare.ErrBadGateway, out.URL)
	}
	defer resp.Body.Close()

	header := rw.Header()
	for k, v := range resp.Header {
		header[k] = append([]string(nil), v...)
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}

	rw.WriteHeader(resp.StatusCode)
	if req.Method == http.MethodHead {
		return nil
	}

	if _, err := io.Copy(rw, resp.Body); err != nil {
		// Headers are out; nothing left to report to the client
		data.Log.Warn("Fetch " + out.URL.String() + ": " + err.Error())
	}
	return nil
}

// closeLate releases the body of a response that arrives after the client
// stopped waiting for it.
func closeLate(c *worker.Completion) {
	<-c.Done()
	if resp := c.Response(); resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}
