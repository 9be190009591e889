// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Fetcher performs the network side of a fetch.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// hop-by-hop headers are not forwarded to the origin
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// HTTPFetcher sends requests to the application origin.
type HTTPFetcher struct {
	Origin    *url.URL
	Client    *http.Client
	UserAgent string
}

func NewHTTPFetcher(origin string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("cache: parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cache: origin %q must be an absolute URL", origin)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPFetcher{Origin: u, Client: client}, nil
}

// Resolve turns a path such as "/icon-192x192.png" into an absolute URL on
// the origin. Absolute URLs are returned unchanged.
func (f *HTTPFetcher) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return f.Origin.ResolveReference(u).String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	out := req.Clone(ctx)
	out.RequestURI = ""
	out.Host = ""
	out.URL = f.Origin.ResolveReference(req.URL)
	if out.Header == nil {
		out.Header = http.Header{}
	}

	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	if f.UserAgent != "" && out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", f.UserAgent)
	}

	return f.Client.Do(out)
}
