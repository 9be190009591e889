// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/latsarcode/latsar/src/netshare"
)

type errorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func wantsJSON(req *http.Request) bool {
	if strings.HasPrefix(req.URL.Path, WorkerPrefix) {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

func (data *Data) writeError(rw http.ResponseWriter, req *http.Request, e error) (int, error) {
	code := netshare.StatusCode(e)

	if code == http.StatusMethodNotAllowed {
		rw.Header().Set("Allow", allowedMethods(req.URL.Path))
	}
	rw.Header().Set("Cache-Control", "no-store")

	if wantsJSON(req) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)
		return code, json.NewEncoder(rw).Encode(errorResponse{
			Code:  code,
			Error: http.StatusText(code),
		})
	}

	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.Header().Set("X-Content-Type-Options", "nosniff")
	rw.WriteHeader(code)
	_, err := rw.Write([]byte(http.StatusText(code) + "\n"))
	return code, err
}

func allowedMethods(path string) string {
	switch path {
	case WorkerPrefix + "push", WorkerPrefix + "notifications/click":
		return "POST"
	default:
		return "GET, HEAD"
	}
}
