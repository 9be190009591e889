// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package subscription talks to the reminder backend: it fetches the
// public push key and hands over push subscriptions.
//
// Both calls return the raw response. There is no retry and no status
// translation; the caller inspects the response and closes its body.
package subscription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/latsarcode/latsar/src/metrics"
)

const (
	DefaultBaseURL = "http://localhost:5000"

	PublicKeyPath = "/api/vapidPublicKey"
	SubscribePath = "/api/subscribe"
)

var ErrInvalidKey = errors.New("subscription: invalid application server key")

// Subscription is the usual shape of a browser push subscription. The
// client accepts any value, so this type is a convenience only.
type Subscription struct {
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime"`
	Keys           Keys   `json:"keys"`
}

type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New returns a client for the backend at baseURL. An empty baseURL means
// DefaultBaseURL; a nil httpClient means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SetUserAgent sets the User-Agent sent with every request.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(req *http.Request, operation string) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.RecordClientRequest(operation, status, err)

	return resp, err
}

// GetPublicKey requests the backend's VAPID public key.
func (c *Client) GetPublicKey(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PublicKeyPath, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req, "public_key")
}

// CreateSubscription posts body, encoded as JSON, to the backend.
func (c *Client) CreateSubscription(ctx context.Context, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("subscription: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SubscribePath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "subscribe")
}

// DecodeApplicationServerKey decodes a URL-safe base64 VAPID public key, as
// served by GetPublicKey, into the raw bytes a push subscription needs.
// The key must be an uncompressed P-256 point.
func DecodeApplicationServerKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	key = strings.Trim(key, "\"")
	key = strings.TrimRight(key, "=")

	raw, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		// Some servers hand out the standard alphabet
		raw, err = base64.RawStdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	}

	if len(raw) != 65 || raw[0] != 0x04 {
		return nil, fmt.Errorf("%w: want 65-byte uncompressed point, got %d bytes", ErrInvalidKey, len(raw))
	}

	return raw, nil
}
