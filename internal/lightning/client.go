package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Default ports and timeouts for the device endpoints.
const (
	DefaultControlPort = 8080
	DefaultWakePort    = 8009

	DefaultWakeTimeout    = 5 * time.Second
	DefaultHealthTimeout  = 2 * time.Second
	DefaultCommandTimeout = 10 * time.Second

	// maxResponseBody caps how much of a device response is read. Device
	// responses are small JSON documents; anything larger is truncated.
	maxResponseBody = 64 * 1024
)

// Config describes one device's connection parameters.
type Config struct {
	// Address is the device's IP address or hostname.
	Address string

	// APIKey is sent as X-Api-Key on every request.
	APIKey string

	// ClientToken is the pairing token, empty for unpaired devices.
	ClientToken string

	// ControlPort and WakePort default to 8080 and 8009.
	ControlPort int
	WakePort    int

	// Zero values take the package defaults.
	WakeTimeout    time.Duration
	HealthTimeout  time.Duration
	CommandTimeout time.Duration
}

// Result captures the outcome of one device command.
type Result struct {
	// Success is true for any 2xx response.
	Success bool

	// StatusCode is the HTTP status, 0 when the request never completed.
	StatusCode int

	// Elapsed is the round-trip time, measured even on failure.
	Elapsed time.Duration

	// Body holds the decoded JSON response, nil when absent or not JSON.
	Body map[string]any
}

// Client speaks the remote-control protocol to a single device.
//
// Safe for concurrent use. The client token may be replaced at any time
// (after pairing completes) without recreating the client.
type Client struct {
	address string
	apiKey  string

	baseURL string
	wakeURL string

	wakeTimeout    time.Duration
	healthTimeout  time.Duration
	commandTimeout time.Duration

	mu    sync.RWMutex
	token string

	httpClient *http.Client
}

// NewClient creates a client for one device.
//
// The underlying transport skips certificate verification because devices
// serve a self-signed certificate on the control port.
func NewClient(cfg Config) *Client {
	controlPort := cfg.ControlPort
	if controlPort == 0 {
		controlPort = DefaultControlPort
	}
	wakePort := cfg.WakePort
	if wakePort == 0 {
		wakePort = DefaultWakePort
	}

	c := &Client{
		address:        cfg.Address,
		apiKey:         cfg.APIKey,
		baseURL:        fmt.Sprintf("https://%s:%d", cfg.Address, controlPort),
		wakeURL:        fmt.Sprintf("http://%s:%d/apps/FireTVRemote", cfg.Address, wakePort),
		wakeTimeout:    durationOr(cfg.WakeTimeout, DefaultWakeTimeout),
		healthTimeout:  durationOr(cfg.HealthTimeout, DefaultHealthTimeout),
		commandTimeout: durationOr(cfg.CommandTimeout, DefaultCommandTimeout),
		token:          cfg.ClientToken,
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // Devices use self-signed certificates
				},
			},
		},
	}
	return c
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}

// Address returns the device address this client talks to.
func (c *Client) Address() string {
	return c.address
}

// Token returns the current client token, empty when unpaired.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the client token, typically after pairing completes.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Wake pokes the DIAL endpoint to wake a sleeping device.
//
// A 200, 201 or 204 means the wake was accepted; anything else usually
// means the device is already awake or unreachable.
func (c *Client) Wake(ctx context.Context) (Result, error) {
	return c.post(ctx, c.wakeURL, nil, c.wakeTimeout, false)
}

// DisplayPIN asks the device to show a pairing PIN on screen.
//
// The device echoes the PIN back in the response; friendlyName is what the
// device displays as the requesting client.
//
// Returns:
//   - string: The PIN now showing on the TV
//   - error: ErrDeviceUnreachable or ErrPINDisplayFailed
func (c *Client) DisplayPIN(ctx context.Context, friendlyName string) (string, error) {
	body := map[string]string{"friendlyName": friendlyName}
	result, err := c.post(ctx, c.baseURL+"/v1/FireTV/pin/display", body, c.commandTimeout, false)
	if err != nil {
		return "", err
	}
	if result.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: device returned %d", ErrPINDisplayFailed, result.StatusCode)
	}

	pin, ok := result.Body["description"].(string)
	if !ok || pin == "" {
		return "", fmt.Errorf("%w: response missing pin", ErrPINDisplayFailed)
	}
	return pin, nil
}

// VerifyPIN submits the PIN the user read off the screen and stores the
// client token the device returns.
//
// Some firmware versions answer a bad PIN with 200 and a literal "OK"
// description instead of a token; that and an empty description are both
// rejected as ErrInvalidToken.
//
// Returns:
//   - string: The client token, already stored on the client
//   - error: ErrDeviceUnreachable, ErrPINRejected or ErrInvalidToken
func (c *Client) VerifyPIN(ctx context.Context, pin string) (string, error) {
	body := map[string]string{"pin": pin}
	result, err := c.post(ctx, c.baseURL+"/v1/FireTV/pin/verify", body, c.commandTimeout, false)
	if err != nil {
		return "", err
	}
	if result.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: device returned %d", ErrPINRejected, result.StatusCode)
	}

	token, _ := result.Body["description"].(string)
	if token == "" || token == "OK" {
		return "", fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}

	c.SetToken(token)
	return token, nil
}

// SendNavigation sends a navigation action: dpad_up, dpad_down, dpad_left,
// dpad_right, select, home, back, menu or sleep.
func (c *Client) SendNavigation(ctx context.Context, action string) (Result, error) {
	u := c.baseURL + "/v1/FireTV?action=" + url.QueryEscape(action)
	return c.post(ctx, u, nil, c.commandTimeout, true)
}

// SendMedia sends a playback action: play, pause, or scan with a
// direction of "forward" or "back".
func (c *Client) SendMedia(ctx context.Context, action, direction string) (Result, error) {
	params := url.Values{"action": {action}}
	if action == "scan" && direction != "" {
		params.Set("direction", direction)
	}
	return c.post(ctx, c.baseURL+"/v1/media?"+params.Encode(), nil, c.commandTimeout, true)
}

// LaunchApp starts the app with the given Android package name.
func (c *Client) LaunchApp(ctx context.Context, packageName string) (Result, error) {
	u := c.baseURL + "/v1/FireTV/app/" + url.PathEscape(packageName)
	return c.post(ctx, u, nil, c.commandTimeout, true)
}

// SendText types text into the focused input field on the device.
func (c *Client) SendText(ctx context.Context, text string) (Result, error) {
	body := map[string]string{"text": text}
	return c.post(ctx, c.baseURL+"/v1/FireTV/keyboard", body, c.commandTimeout, true)
}

// IsAPIAvailable reports whether the control API answers at all. Any HTTP
// response, including an error status, means the service is up; only a
// transport failure means it is not.
func (c *Client) IsAPIAvailable(ctx context.Context) bool {
	result, err := c.get(ctx, c.baseURL+"/v1/FireTV", c.healthTimeout)
	return err == nil && result.StatusCode > 0
}

// HealthCheck probes the wake endpoint to see if the device is reachable
// on the network. 200, 204 and 404 all count as reachable; the DIAL
// service answers 404 for unknown apps but a 404 still proves the device
// is up.
func (c *Client) HealthCheck(ctx context.Context) bool {
	result, err := c.get(ctx, c.wakeURL, c.healthTimeout)
	if err != nil {
		return false
	}
	switch result.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return true
	default:
		return false
	}
}

// post executes a POST against a device endpoint.
func (c *Client) post(ctx context.Context, rawURL string, jsonBody any, timeout time.Duration, includeToken bool) (Result, error) {
	var reqBody io.Reader
	if jsonBody != nil {
		b, err := json.Marshal(jsonBody)
		if err != nil {
			return Result{}, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	return c.do(ctx, http.MethodPost, rawURL, reqBody, timeout, includeToken)
}

// get executes a GET against a device endpoint.
func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) (Result, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, timeout, true)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, timeout time.Duration, includeToken bool) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return Result{Elapsed: time.Since(start)}, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if includeToken {
		if token := c.Token(); token != "" {
			req.Header.Set("X-Client-Token", token)
		}
	}
	if body != nil {
		if r, ok := body.(*bytes.Reader); ok {
			req.ContentLength = int64(r.Len())
		}
	}

	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Elapsed: elapsed}, fmt.Errorf("%w: %v", ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Nothing useful to do with a close error

	result := Result{
		StatusCode: resp.StatusCode,
		Elapsed:    elapsed,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err == nil && len(raw) > 0 {
		var decoded map[string]any
		if json.Unmarshal(raw, &decoded) == nil {
			result.Body = decoded
		}
	}

	return result, nil
}

// StatusText is a convenience for log and history messages.
func StatusText(code int) string {
	if code == 0 {
		return "no response"
	}
	return strconv.Itoa(code) + " " + http.StatusText(code)
}
