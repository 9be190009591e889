// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/latsarcode/latsar/src/worker"
)

type healthzResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
	Worker    string `json:"worker"`
	Cache     string `json:"cache"`
	Entries   int    `json:"entries"`
	Uptime    int64  `json:"uptime,omitempty"`
}

var startTime = time.Now()

// Pattern: /healthz
func (data *Data) handleHealthz(rw http.ResponseWriter, req *http.Request) error {
	state := data.Worker.State()

	resp := healthzResponse{
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
		Version:   data.Version,
		Worker:    string(state),
		Cache:     data.Cache.Name(),
		Uptime:    int64(time.Since(startTime).Seconds()),
	}

	entries, err := data.Cache.Entries(req.Context())
	if err != nil {
		data.Log.Error(err)
		resp.Status = "degraded"
	}
	resp.Entries = entries

	// Still serving, but only from the network
	if state == worker.StateRedundant {
		resp.Status = "degraded"
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Cache-Control", "no-store")
	if resp.Status != "healthy" {
		rw.WriteHeader(http.StatusServiceUnavailable)
	} else {
		rw.WriteHeader(http.StatusOK)
	}
	jsonData, _ := json.MarshalIndent(resp, "", "  ")
	rw.Write(jsonData)
	rw.Write([]byte("\n"))
	return nil
}
