// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/latsarcode/latsar/src/netshare"
)

type LogFormat struct {
	// Access log format: apache, nginx, text, json
	Access string
	// Error log format: text, json
	Error string
	// Server log format: text, json
	Server string
	// Debug log format: text, json
	Debug string
}

type LogLevel int

const (
	LogLevelDebug LogLevel = iota - 1
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

type Logger struct {
	TimeFormat string
	Format     LogFormat
	Level      LogLevel

	// File writers - always write regardless of level
	serverFile io.Writer
	errorFile  io.Writer
	accessFile io.Writer
	debugFile  io.Writer

	// Console writers - filtered by level
	stdout io.Writer
	stderr io.Writer

	debugMode bool
}

func New(timeFormat string) Logger {
	return Logger{
		TimeFormat: timeFormat,
		Level:      LogLevelInfo,
		Format: LogFormat{
			Access: "apache",
			Error:  "text",
			Server: "text",
			Debug:  "text",
		},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Discard returns a logger that writes nowhere. Useful in tests.
func Discard() Logger {
	l := New(time.RFC3339)
	l.SetWriter(io.Discard)
	return l
}

// SetFormat sets the log format for each log type
func (l *Logger) SetFormat(format LogFormat) {
	l.Format = format
}

// SetLevel sets the minimum console log level (debug, info, warn, error)
func (l *Logger) SetLevel(level string) {
	switch level {
	case "debug":
		l.Level = LogLevelDebug
		l.debugMode = true
	case "warn":
		l.Level = LogLevelWarn
	case "error":
		l.Level = LogLevelError
	default:
		l.Level = LogLevelInfo
	}
}

// SetWriter sets both stdout and stderr to the same writer
func (l *Logger) SetWriter(w io.Writer) {
	l.stdout = w
	l.stderr = w
}

// SetWriters sets stdout and stderr separately (for console output)
func (l *Logger) SetWriters(stdout, stderr io.Writer) {
	l.stdout = stdout
	l.stderr = stderr
}

// SetFileWriters sets the file writers for each log type
func (l *Logger) SetFileWriters(server, errorLog io.Writer) {
	l.serverFile = server
	l.errorFile = errorLog
}

// SetAccessLogWriter sets the writer for HTTP access logs
func (l *Logger) SetAccessLogWriter(w io.Writer) {
	l.accessFile = w
}

// SetDebugWriter sets the writer for debug logs
func (l *Logger) SetDebugWriter(w io.Writer) {
	l.debugFile = w
}

// SetDebugMode enables or disables debug logging
func (l *Logger) SetDebugMode(enabled bool) {
	l.debugMode = enabled
}

func getTrace() string {
	trace := ""

	for i := 3; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			return trace
		}
		trace = trace + file + "#" + strconv.Itoa(line) + ": "
	}
}

func (cfg Logger) format(kind, level, msg string, extra map[string]interface{}) string {
	if kind == "json" {
		entry := map[string]interface{}{
			"time":    time.Now().Format(time.RFC3339),
			"level":   level,
			"message": msg,
		}
		for k, v := range extra {
			entry[k] = v
		}
		data, _ := json.Marshal(entry)
		return string(data)
	}

	return fmt.Sprintf("%s %-9s %s", time.Now().Format(cfg.TimeFormat), "["+level+"]", msg)
}

// Debug writes debug messages (only if debug mode is enabled)
func (cfg Logger) Debug(msg string) {
	if !cfg.debugMode {
		return
	}

	output := cfg.format(cfg.Format.Debug, "DEBUG", msg, nil)
	if cfg.debugFile != nil {
		fmt.Fprintln(cfg.debugFile, output)
	}
	if cfg.Level <= LogLevelDebug && cfg.stdout != nil {
		fmt.Fprintln(cfg.stdout, output)
	}
}

func (cfg Logger) Info(msg string) {
	output := cfg.format(cfg.Format.Server, "INFO", msg, nil)

	if cfg.serverFile != nil {
		fmt.Fprintln(cfg.serverFile, output)
	}
	if cfg.Level <= LogLevelInfo && cfg.stdout != nil {
		fmt.Fprintln(cfg.stdout, output)
	}
}

func (cfg Logger) Warn(msg string) {
	output := cfg.format(cfg.Format.Server, "WARN", msg, nil)

	if cfg.serverFile != nil {
		fmt.Fprintln(cfg.serverFile, output)
	}
	if cfg.Level <= LogLevelWarn && cfg.stdout != nil {
		fmt.Fprintln(cfg.stdout, output)
	}
}

func (cfg Logger) Error(e error) {
	var output string
	if cfg.Format.Error == "json" {
		output = cfg.format("json", "ERROR", e.Error(), map[string]interface{}{"trace": getTrace()})
	} else {
		output = cfg.format("text", "ERROR", getTrace()+e.Error(), nil)
	}

	if cfg.errorFile != nil {
		fmt.Fprintln(cfg.errorFile, output)
	}

	// Errors are always shown
	if cfg.stderr != nil {
		fmt.Fprintln(cfg.stderr, output)
	}
}

func (cfg Logger) HttpRequest(req *http.Request, code int) {
	if cfg.accessFile == nil {
		return
	}

	clientIP := netshare.GetClientAddr(req).String()
	method := req.Method
	path := req.URL.RequestURI()
	referer := req.Referer()
	if referer == "" {
		referer = "-"
	}
	userAgent := req.UserAgent()
	if userAgent == "" {
		userAgent = "-"
	}

	switch cfg.Format.Access {
	case "json":
		entry := map[string]interface{}{
			"time":       time.Now().Format(time.RFC3339),
			"client_ip":  clientIP,
			"method":     method,
			"path":       path,
			"protocol":   req.Proto,
			"status":     code,
			"referer":    referer,
			"user_agent": userAgent,
		}
		data, _ := json.Marshal(entry)
		fmt.Fprintln(cfg.accessFile, string(data))

	case "nginx":
		timestamp := time.Now().Format("02/Jan/2006:15:04:05 -0700")
		fmt.Fprintf(cfg.accessFile, "%s - - [%s] \"%s %s %s\" %d 0 \"%s\" \"%s\"\n",
			clientIP, timestamp, method, path, req.Proto, code, referer, userAgent)

	case "text":
		timestamp := time.Now().Format(cfg.TimeFormat)
		fmt.Fprintf(cfg.accessFile, "%s %s %s %s %d %s\n",
			timestamp, clientIP, method, path, code, userAgent)

	default: // "apache" or unspecified
		timestamp := time.Now().Format("02/Jan/2006:15:04:05 -0700")
		fmt.Fprintf(cfg.accessFile, "%s - - [%s] \"%s %s %s\" %d - \"%s\" \"%s\"\n",
			clientIP, timestamp, method, path, req.Proto, code, referer, userAgent)
	}
}

func (cfg Logger) HttpError(req *http.Request, e error) {
	clientIP := netshare.GetClientAddr(req).String()
	path := req.URL.RequestURI()

	var output string
	if cfg.Format.Error == "json" {
		output = cfg.format("json", "ERROR", e.Error(), map[string]interface{}{
			"client_ip":  clientIP,
			"method":     req.Method,
			"path":       path,
			"user_agent": req.UserAgent(),
			"trace":      getTrace(),
		})
	} else {
		output = cfg.format("text", "ERROR", fmt.Sprintf("%s %s %s (User-Agent: %s) Error: %s%s",
			clientIP, req.Method, path, req.UserAgent(), getTrace(), e.Error()), nil)
	}

	if cfg.errorFile != nil {
		fmt.Fprintln(cfg.errorFile, output)
	}
	if cfg.stderr != nil {
		fmt.Fprintln(cfg.stderr, output)
	}
}
