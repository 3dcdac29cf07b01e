package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/text/unicode/norm"
)

// resourcePaths maps resource names (engine Kind keys) to backend endpoints.
var resourcePaths = map[string]string{
	"content":       "/display/content",
	"prayer_status": "/display/prayer-status",
	"prayer_times":  "/display/prayer-times",
	"events":        "/display/events",
	"schedule":      "/display/schedule",
}

// FetchResource performs one authenticated GET for the named resource and
// returns the response payload, validated and NFC-normalized, ready for the
// cache. force adds refresh=1 so the backend bypasses its own edge caches.
func (c *Client) FetchResource(ctx context.Context, resource string, force bool) ([]byte, error) {
	path, ok := resourcePaths[resource]
	if !ok {
		return nil, fmt.Errorf("api: no endpoint for resource %q", resource)
	}

	if force {
		path += "?refresh=1"
	}

	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: reading %s response: %w", resource, err)
	}

	normalized, err := normalizePayload(body)
	if err != nil {
		return nil, fmt.Errorf("api: %s payload invalid: %w", resource, err)
	}

	return normalized, nil
}

// HeartbeatReport is the body of the heartbeat push.
type HeartbeatReport struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	LastError     string `json:"last_error,omitempty"`
	DeviceTime    string `json:"device_time"`
}

// SubmitHeartbeat pushes one status report to the backend.
func (c *Client) SubmitHeartbeat(ctx context.Context, report HeartbeatReport) error {
	if report.DeviceTime == "" {
		report.DeviceTime = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("api: encoding heartbeat: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/devices/heartbeat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

// PairDevice exchanges a short pairing code for a bearer token. Called once
// by the pair command; the token is persisted and used for every subsequent
// request.
func PairDevice(ctx context.Context, httpClient *http.Client, baseURL, code, deviceName string) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	reqBody, err := json.Marshal(map[string]string{
		"code":        code,
		"device_name": deviceName,
	})
	if err != nil {
		return "", fmt.Errorf("api: encoding pairing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/devices/pair", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("api: creating pairing request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api: pairing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var parsed struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("api: decoding pairing response: %w", err)
	}

	if parsed.Token == "" {
		return "", fmt.Errorf("api: pairing response contained no token")
	}

	return parsed.Token, nil
}

// normalizePayload validates that the payload is JSON and applies Unicode NFC
// normalization to every string value. Backends assemble display text from
// mixed sources; normalizing once here means the cache and the UI never see
// both composed and decomposed forms of the same announcement.
func normalizePayload(payload []byte) ([]byte, error) {
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, err
	}

	normalized := normalizeValue(value)

	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// normalizeValue walks a decoded JSON value, NFC-normalizing strings.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return norm.NFC.String(v)
	case []any:
		for i := range v {
			v[i] = normalizeValue(v[i])
		}

		return v
	case map[string]any:
		for k, elem := range v {
			v[k] = normalizeValue(elem)
		}

		return v
	default:
		return v
	}
}
