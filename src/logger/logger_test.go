// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var out, errOut, file bytes.Buffer

	l := New("15:04:05")
	l.SetWriters(&out, &errOut)
	l.SetFileWriters(&file, nil)
	l.SetLevel("warn")

	l.Info("info line")
	l.Warn("warn line")
	l.Debug("debug line")
	l.Error(errors.New("error line"))

	if strings.Contains(out.String(), "info line") {
		t.Error("info written to console at warn level")
	}
	if !strings.Contains(out.String(), "warn line") {
		t.Error("warn missing from console")
	}
	if !strings.Contains(file.String(), "info line") {
		t.Error("server file must get every level")
	}
	if strings.Contains(out.String()+file.String(), "debug line") {
		t.Error("debug written without debug mode")
	}
	if !strings.Contains(errOut.String(), "error line") {
		t.Error("error missing from stderr")
	}
}

func TestDebugMode(t *testing.T) {
	var out, debugFile bytes.Buffer

	l := New("15:04:05")
	l.SetWriter(&out)
	l.SetDebugWriter(&debugFile)
	l.SetLevel("debug")

	l.Debug("details")
	if !strings.Contains(out.String(), "[DEBUG]") || !strings.Contains(debugFile.String(), "details") {
		t.Errorf("console %q, file %q", out.String(), debugFile.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var out bytes.Buffer

	l := New("15:04:05")
	l.SetWriter(&out)
	l.SetFormat(LogFormat{Server: "json"})
	l.Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(out.Bytes(), &entry); err != nil {
		t.Fatalf("%v: %q", err, out.String())
	}
	if entry["level"] != "INFO" || entry["message"] != "hello" {
		t.Errorf("entry = %v", entry)
	}
}

func TestHttpRequestFormats(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/icon-192x192.png?v=1", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	req.Header.Set("User-Agent", "test-agent")

	tests := map[string]string{
		"apache": `203.0.113.7 - - [`,
		"nginx":  `"GET /icon-192x192.png?v=1 HTTP/1.1" 200 0`,
		"text":   `203.0.113.7 GET /icon-192x192.png?v=1 200 test-agent`,
		"json":   `"status":200`,
	}

	for format, want := range tests {
		var access bytes.Buffer
		l := Discard()
		l.SetFormat(LogFormat{Access: format})
		l.SetAccessLogWriter(&access)
		l.HttpRequest(req, 200)

		if !strings.Contains(access.String(), want) {
			t.Errorf("%s: %q does not contain %q", format, access.String(), want)
		}
	}
}

func TestHttpRequestWithoutAccessLog(t *testing.T) {
	l := Discard()
	// Must not panic with no access writer
	l.HttpRequest(httptest.NewRequest(http.MethodGet, "/", nil), 200)
}
