// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/latsarcode/latsar/src/notify"
	"github.com/latsarcode/latsar/src/push"
	"github.com/latsarcode/latsar/src/subscription"
)

func (a *app) backend() *subscription.Client {
	c := subscription.New(a.cfg.APIBaseURL, a.client)
	c.SetUserAgent("latsar-cli/" + Version)
	return c
}

// makeRequest sends a request to the local daemon.
func (a *app) makeRequest(method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	if a.cfg.Server == "" {
		return nil, fmt.Errorf("server not configured. Run 'latsar-cli config set server URL' first")
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(a.cfg.Server, "/")+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "latsar-cli/"+Version)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return a.client.Do(req)
}

func (a *app) renderer() *notify.Terminal {
	return notify.NewTerminal(notify.NewTray(), a.stdout)
}

func statusError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, msg)
}

// extractKey accepts the key as plain text, as a JSON string or as a JSON
// object with a publicKey field.
func extractKey(body []byte) string {
	body = bytes.TrimSpace(body)

	var s string
	if json.Unmarshal(body, &s) == nil {
		return s
	}

	var obj struct {
		PublicKey string `json:"publicKey"`
		Key       string `json:"key"`
	}
	if json.Unmarshal(body, &obj) == nil {
		if obj.PublicKey != "" {
			return obj.PublicKey
		}
		return obj.Key
	}

	return string(body)
}

func (a *app) handleKey(args []string) error {
	if len(args) != 0 {
		return errUsage
	}

	resp, err := a.backend().GetPublicKey(context.Background())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, body)
	}

	key := extractKey(body)
	raw, err := subscription.DecodeApplicationServerKey(key)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, key)
	fmt.Fprintf(a.stderr, "Valid P-256 application server key (%d bytes)\n", len(raw))
	return nil
}

func (a *app) handleSubscribe(args []string) error {
	input := a.stdin
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f", "--file":
			if i+1 >= len(args) {
				return errUsage
			}
			i++
			if args[i] == "-" {
				continue
			}
			f, err := os.Open(args[i])
			if err != nil {
				return err
			}
			defer f.Close()
			input = f
		default:
			return errUsage
		}
	}

	var sub json.RawMessage
	if err := json.NewDecoder(input).Decode(&sub); err != nil {
		return fmt.Errorf("read subscription: %w", err)
	}

	resp, err := a.backend().CreateSubscription(context.Background(), sub)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, body)
	}

	fmt.Fprintf(a.stdout, "Subscribed (%s)\n", resp.Status)
	if len(bytes.TrimSpace(body)) > 0 {
		fmt.Fprintln(a.stdout, strings.TrimSpace(string(body)))
	}
	return nil
}

// parseMessageFlags reads -t/-b/-r. With -r the message is sent as given.
func parseMessageFlags(args []string) ([]byte, error) {
	var p push.Payload
	var raw []byte
	var hasTitle, hasBody bool

	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			return nil, errUsage
		}
		switch args[i] {
		case "-t", "--title":
			i++
			p.Title, hasTitle = args[i], true
		case "-b", "--body":
			i++
			p.Body, hasBody = args[i], true
		case "-r", "--raw":
			i++
			raw = []byte(args[i])
		default:
			return nil, errUsage
		}
	}

	if raw != nil || (!hasTitle && !hasBody) {
		return raw, nil
	}

	fields := map[string]string{}
	if hasTitle {
		fields["title"] = p.Title
	}
	if hasBody {
		fields["body"] = p.Body
	}
	return json.Marshal(fields)
}

func (a *app) handlePush(args []string) error {
	data, err := parseMessageFlags(args)
	if err != nil {
		return err
	}

	resp, err := a.makeRequest(http.MethodPost, "/_worker/push", bytes.NewReader(data), "application/octet-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return statusError(resp, body)
	}

	var n notify.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Fprintln(a.stdout, a.renderer().Render(n))
	return nil
}

func (a *app) handlePreview(args []string) error {
	data, err := parseMessageFlags(args)
	if err != nil {
		return err
	}

	p, err := push.ParsePayload(data)
	if err != nil {
		fmt.Fprintf(a.stderr, "Warning: %v, using defaults\n", err)
	}

	fmt.Fprintln(a.stdout, a.renderer().Render(push.Reminder(p)))
	return nil
}

func (a *app) handleList(args []string) error {
	if len(args) != 0 {
		return errUsage
	}

	visible, err := a.fetchNotifications()
	if err != nil {
		return err
	}

	if len(visible) == 0 {
		fmt.Fprintln(a.stdout, "No notifications")
		return nil
	}

	r := a.renderer()
	for _, n := range visible {
		fmt.Fprintln(a.stdout, r.Render(n))
	}
	return nil
}

func (a *app) handleClick(args []string) error {
	if len(args) > 1 {
		return errUsage
	}

	tag := ""
	if len(args) == 1 {
		tag = args[0]
	}
	if err := a.clickNotification(tag); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "Clicked; opened "+push.RootPath)
	return nil
}

// fetchNotifications returns the notifications the daemon shows.
func (a *app) fetchNotifications() ([]notify.Notification, error) {
	resp, err := a.makeRequest(http.MethodGet, "/_worker/notifications", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, body)
	}

	var visible []notify.Notification
	if err := json.Unmarshal(body, &visible); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return visible, nil
}

// clickNotification clicks the notification with tag; an empty tag means
// the daily reminder.
func (a *app) clickNotification(tag string) error {
	endpoint := "/_worker/notifications/click"
	if tag != "" {
		endpoint += "?tag=" + url.QueryEscape(tag)
	}

	resp, err := a.makeRequest(http.MethodPost, endpoint, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp, body)
	}
	return nil
}

func (a *app) handleHealth(args []string) error {
	if len(args) != 0 {
		return errUsage
	}

	resp, err := a.makeRequest(http.MethodGet, "/healthz", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Worker  string `json:"worker"`
		Cache   string `json:"cache"`
		Entries int    `json:"entries"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &health); err != nil {
		return statusError(resp, body)
	}

	fmt.Fprintf(a.stdout, "Server %s is %s\n", a.cfg.Server, health.Status)
	fmt.Fprintf(a.stdout, "Version: %s\n", health.Version)
	fmt.Fprintf(a.stdout, "Worker:  %s\n", health.Worker)
	fmt.Fprintf(a.stdout, "Cache:   %s (%d entries)\n", health.Cache, health.Entries)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
