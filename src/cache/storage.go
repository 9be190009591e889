// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
)

var ErrNotFound = errors.New("cache: no matching entry")

// Response is a stored response. Body is held in full.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// HTTP turns the stored response into a fresh *http.Response for req.
func (r *Response) HTTP(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	return &http.Response{
		Status:        strconv.Itoa(r.Status) + " " + http.StatusText(r.Status),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// Container is one named cache of request key to response pairs.
type Container interface {
	// Match returns ErrNotFound when key is not stored.
	Match(ctx context.Context, key string) (*Response, error)
	// PutAll stores every entry or none of them.
	PutAll(ctx context.Context, entries map[string]*Response) error
	Keys(ctx context.Context) ([]string, error)
}

// Storage is the set of named containers.
type Storage interface {
	// Open returns the container called name, creating it if absent.
	Open(ctx context.Context, name string) (Container, error)
	// Delete removes the container and every entry in it.
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context) ([]string, error)
}

// Key is the lookup key of req. Only GET requests are ever stored, so any
// other method gets a key that never matches.
func Key(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}

// KeyFor is the key of a GET request for an absolute URL.
func KeyFor(absURL string) string {
	return http.MethodGet + " " + absURL
}
