// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/latsarcode/latsar/src/logger"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware sees the request first.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type RequestIDKey struct{}

// RequestIDMiddleware tags each request with an ID. A valid UUID sent by
// the client or an upstream proxy is kept.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = r.Header.Get("X-Correlation-ID")
		}

		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// PanicRecoveryMiddleware turns a panic into a 500. In debug mode the
// stack trace is written to the response as well.
func PanicRecoveryMiddleware(log logger.Logger, debug bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]

				msg := fmt.Sprintf("panic recovered: %v", rec)
				if id := GetRequestID(r.Context()); id != "" {
					msg += ", request_id=" + id
				}
				log.Error(fmt.Errorf("%s\n%s", msg, stack))

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.WriteHeader(http.StatusInternalServerError)
				if debug {
					fmt.Fprintf(w, "Internal Server Error\n\nPanic: %v\n\nStack Trace:\n%s\n", rec, stack)
					return
				}
				fmt.Fprint(w, "An unexpected error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// hasDotDotSegment reports whether p has a ".." path segment. Names that
// merely contain two dots, like "app..js", are fine.
func hasDotDotSegment(p string) bool {
	segments := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
	for _, seg := range segments {
		if seg == ".." {
			return true
		}
	}
	return false
}

// PathSecurityMiddleware rejects paths that try to climb out of the
// origin, plain or percent-encoded.
func PathSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if raw := r.URL.RawPath; raw != "" {
			path = raw
		}

		decoded, err := url.PathUnescape(path)
		if err != nil || hasDotDotSegment(decoded) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}
