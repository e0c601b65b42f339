package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hms-homelab/hms-firetv/internal/apps"
	"github.com/hms-homelab/hms-firetv/internal/cache"
	"github.com/hms-homelab/hms-firetv/internal/device"
	"github.com/hms-homelab/hms-firetv/internal/history"
	"github.com/hms-homelab/hms-firetv/internal/lightning"
)

// Controller is what the dispatcher needs from a protocol client.
// *lightning.Client satisfies it; tests substitute fakes.
type Controller interface {
	Wake(ctx context.Context) (lightning.Result, error)
	SendNavigation(ctx context.Context, action string) (lightning.Result, error)
	SendMedia(ctx context.Context, action, direction string) (lightning.Result, error)
	LaunchApp(ctx context.Context, packageName string) (lightning.Result, error)
	SendText(ctx context.Context, text string) (lightning.Result, error)
	IsAPIAvailable(ctx context.Context) bool
	SetToken(token string)
}

// Factory builds a Controller for one device.
type Factory func(cfg lightning.Config) Controller

// Result is the outcome handed back to the calling transport.
type Result struct {
	DeviceID   string        `json:"device_id"`
	Command    string        `json:"command"`
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code,omitempty"`
	Elapsed    time.Duration `json:"-"`
}

// Options tunes the dispatcher. Zero values take the lightning and cache
// package defaults.
type Options struct {
	ControlPort    int
	WakePort       int
	WakeTimeout    time.Duration
	HealthTimeout  time.Duration
	CommandTimeout time.Duration

	// Settle is how long a freshly woken device gets before the awake
	// recheck. Defaults to 3 seconds.
	Settle time.Duration

	// CacheCapacity and CacheTTL bound the per-device client cache.
	CacheCapacity int
	CacheTTL      time.Duration
}

// Logger is the subset of the logging package the dispatcher uses.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// historySink accepts history entries. *history.Logger satisfies it.
type historySink interface {
	Enqueue(entry history.Entry) bool
}

const (
	defaultSettle        = 3 * time.Second
	defaultCacheCapacity = 100
	defaultCacheTTL      = time.Hour
)

// Dispatcher routes commands to devices.
type Dispatcher struct {
	repo    device.Repository
	hist    historySink
	clients *cache.Cache[string, Controller]
	opts    Options

	// factory and sleep are injectable for tests.
	factory Factory
	sleep   func(ctx context.Context, d time.Duration)

	logger Logger
}

// New creates a dispatcher over the device repository and history logger.
func New(repo device.Repository, hist *history.Logger, opts Options) *Dispatcher {
	return newDispatcher(repo, hist, opts, func(cfg lightning.Config) Controller {
		return lightning.NewClient(cfg)
	})
}

func newDispatcher(repo device.Repository, hist historySink, opts Options, factory Factory) *Dispatcher {
	if opts.Settle == 0 {
		opts.Settle = defaultSettle
	}
	capacity := opts.CacheCapacity
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &Dispatcher{
		repo:    repo,
		hist:    hist,
		clients: cache.New[string, Controller](capacity, ttl),
		opts:    opts,
		factory: factory,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// SetLogger sets an optional logger.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Execute runs one command against one device.
//
// Routing errors (unknown command, missing parameter, unknown app, unknown
// device) return before any device contact. Everything else reaches the
// device behind the wake policy and is recorded to command history whether
// it succeeded or not.
//
// Returns:
//   - Result: Outcome summary for the transport's reply
//   - error: Routing sentinel, device.ErrNotFound, ErrDeviceAsleep, or a
//     lightning transport error
func (d *Dispatcher) Execute(ctx context.Context, deviceID, command string, params map[string]any) (Result, error) {
	res := Result{DeviceID: deviceID, Command: command}

	op, err := d.route(command, params)
	if err != nil {
		return res, err
	}

	client, err := d.Client(ctx, deviceID)
	if err != nil {
		return res, err
	}

	// turn_on is the one command meant for a sleeping device.
	if command != "turn_on" {
		if err := d.ensureAwake(ctx, deviceID, client); err != nil {
			d.record(deviceID, command, params, Result{}, err)
			return res, err
		}
	}

	lres, err := op(ctx, client)
	res.Success = err == nil && lres.Success
	res.StatusCode = lres.StatusCode
	res.Elapsed = lres.Elapsed

	d.record(deviceID, command, params, res, err)
	d.trackStatus(ctx, deviceID, err, res.Success)

	if err != nil {
		return res, err
	}
	return res, nil
}

// operation executes one routed command against a client.
type operation func(ctx context.Context, c Controller) (lightning.Result, error)

// route turns a command name plus parameters into an operation, failing
// fast on anything malformed so bad input never touches a device.
func (d *Dispatcher) route(command string, params map[string]any) (operation, error) {
	switch {
	case command == "navigate":
		action, err := navigationAction(params)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.SendNavigation(ctx, action)
		}, nil

	case strings.HasPrefix(command, "media_"):
		action, direction, err := mediaAction(command)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.SendMedia(ctx, action, direction)
		}, nil

	case command == "volume_up" || command == "volume_down" || command == "volume_mute" || command == "mute":
		action := command
		if action == "mute" {
			action = "volume_mute"
		}
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.SendNavigation(ctx, action)
		}, nil

	case command == "turn_on":
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.Wake(ctx)
		}, nil

	case command == "turn_off":
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.SendNavigation(ctx, "sleep")
		}, nil

	case command == "launch_app" || command == "select_source":
		pkg, err := appPackage(params)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.LaunchApp(ctx, pkg)
		}, nil

	case command == "send_text" || command == "keyboard_input":
		text, ok := params["text"].(string)
		if !ok || text == "" {
			return nil, fmt.Errorf("%w: text", ErrMissingParameter)
		}
		return func(ctx context.Context, c Controller) (lightning.Result, error) {
			return c.SendText(ctx, text)
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// navigationAction maps the navigate payload onto a protocol action:
// a direction (up/down/left/right) becomes dpad_*, an action passes
// through as-is.
func navigationAction(params map[string]any) (string, error) {
	if direction, ok := params["direction"].(string); ok && direction != "" {
		switch direction {
		case "up", "down", "left", "right":
			return "dpad_" + direction, nil
		default:
			return "", fmt.Errorf("%w: direction %q", ErrUnknownCommand, direction)
		}
	}
	if action, ok := params["action"].(string); ok && action != "" {
		if strings.HasPrefix(action, "dpad_") {
			return action, nil
		}
		switch action {
		case "up", "down", "left", "right":
			return "dpad_" + action, nil
		}
		return action, nil
	}
	return "", fmt.Errorf("%w: direction or action", ErrMissingParameter)
}

// mediaAction maps media_* commands onto the protocol's play/pause/scan
// vocabulary. The device has no stop, so stop pauses.
func mediaAction(command string) (action, direction string, err error) {
	switch command {
	case "media_play", "media_play_pause":
		return "play", "", nil
	case "media_pause", "media_stop":
		return "pause", "", nil
	case "media_next_track":
		return "scan", "forward", nil
	case "media_previous_track":
		return "scan", "back", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// appPackage resolves the launch target from either an explicit package
// or a friendly source name.
func appPackage(params map[string]any) (string, error) {
	if pkg, ok := params["package"].(string); ok && pkg != "" {
		return pkg, nil
	}

	name, _ := params["source"].(string)
	if name == "" {
		name, _ = params["app"].(string)
	}
	if name == "" {
		return "", fmt.Errorf("%w: package or source", ErrMissingParameter)
	}

	pkg, ok := apps.Resolve(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownApp, name)
	}
	return pkg, nil
}

// ensureAwake verifies the control API answers, waking the device once if
// it does not.
func (d *Dispatcher) ensureAwake(ctx context.Context, deviceID string, client Controller) error {
	if client.IsAPIAvailable(ctx) {
		return nil
	}

	d.debug("device not answering, waking", "device_id", deviceID)
	if _, err := client.Wake(ctx); err != nil {
		return fmt.Errorf("%w: wake failed: %v", ErrDeviceAsleep, err)
	}

	d.sleep(ctx, d.opts.Settle)

	if !client.IsAPIAvailable(ctx) {
		return fmt.Errorf("%w: still unresponsive after wake", ErrDeviceAsleep)
	}
	return nil
}

// Client returns the cached protocol client for a device, creating it
// from the registry on first use.
func (d *Dispatcher) Client(ctx context.Context, deviceID string) (Controller, error) {
	if client, ok := d.clients.Get(deviceID); ok {
		return client, nil
	}

	dev, err := d.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	client := d.factory(lightning.Config{
		Address:        dev.IPAddress,
		APIKey:         dev.APIKey,
		ClientToken:    dev.ClientToken,
		ControlPort:    d.opts.ControlPort,
		WakePort:       d.opts.WakePort,
		WakeTimeout:    d.opts.WakeTimeout,
		HealthTimeout:  d.opts.HealthTimeout,
		CommandTimeout: d.opts.CommandTimeout,
	})
	d.clients.Put(deviceID, client)
	return client, nil
}

// InvalidateClient drops a device's cached client. Call after its address,
// key or token changes so the next command builds a fresh client.
func (d *Dispatcher) InvalidateClient(deviceID string) {
	d.clients.Remove(deviceID)
}

// record enqueues a history entry; drops are the logger's concern.
func (d *Dispatcher) record(deviceID, command string, params map[string]any, res Result, err error) {
	if d.hist == nil {
		return
	}

	entry := history.Entry{
		DeviceID:       deviceID,
		CommandType:    command,
		CommandData:    params,
		Success:        res.Success,
		ResponseTimeMS: res.Elapsed.Milliseconds(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	} else if !res.Success && res.StatusCode != 0 {
		entry.ErrorMessage = lightning.StatusText(res.StatusCode)
	}
	d.hist.Enqueue(entry)
}

// trackStatus keeps the registry's idea of the device current. Registry
// write failures only warn; the command outcome already happened.
func (d *Dispatcher) trackStatus(ctx context.Context, deviceID string, cmdErr error, success bool) {
	var err error
	switch {
	case success:
		err = d.repo.TouchLastSeen(ctx, deviceID, device.StatusOnline)
	case errors.Is(cmdErr, lightning.ErrDeviceUnreachable):
		err = d.repo.UpdateStatus(ctx, deviceID, device.StatusOffline)
	default:
		return
	}
	if err != nil {
		d.warn("failed to update device status", "device_id", deviceID, "error", err)
	}
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
