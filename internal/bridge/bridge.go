package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hms-homelab/hms-firetv/internal/device"
	"github.com/hms-homelab/hms-firetv/internal/dispatch"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/mqtt"
	"github.com/hms-homelab/hms-firetv/internal/lightning"
)

const (
	// workerCount is how many commands execute concurrently. Wake settles
	// can hold a worker for seconds, so a press on another remote must not
	// queue behind one.
	workerCount = 4

	// queueSize bounds pending button presses. A stuck device should not
	// accumulate an unbounded replay of stale presses.
	queueSize = 64

	// executeTimeout bounds one command end to end, including the wake
	// settle and the device round trip.
	executeTimeout = 30 * time.Second
)

// broker is the slice of the MQTT client the bridge uses.
type broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// executor runs normalized commands. *dispatch.Dispatcher satisfies it.
type executor interface {
	Execute(ctx context.Context, deviceID, command string, params map[string]any) (dispatch.Result, error)
}

// Logger is the subset of the logging package the bridge uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// job is one translated command waiting for a worker.
type job struct {
	deviceID string
	command  string
	params   map[string]any
}

// Bridge subscribes to per-device command topics and feeds the dispatcher.
type Bridge struct {
	broker broker
	repo   device.Repository
	exec   executor
	topics mqtt.Topics
	qos    byte
	logger Logger

	jobs    chan job
	refresh chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	// subscribed tracks the command topics currently held, keyed by device
	// ID, so Resubscribe can diff against the roster.
	subscribed map[string]string
	subMu      sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a bridge over a connected broker client.
//
// Parameters:
//   - client: Connected MQTT client
//   - repo: Device registry used to build the subscription roster
//   - exec: Command dispatcher
//   - qos: QoS level for all bridge publishes and subscriptions
//   - logger: Structured logger (must not be nil)
func New(client *mqtt.Client, repo device.Repository, exec executor, qos byte, logger Logger) *Bridge {
	return newBridge(client, client.Topics(), repo, exec, qos, logger)
}

func newBridge(b broker, topics mqtt.Topics, repo device.Repository, exec executor, qos byte, logger Logger) *Bridge {
	return &Bridge{
		broker:     b,
		repo:       repo,
		exec:       exec,
		topics:     topics,
		qos:        qos,
		logger:     logger,
		jobs:       make(chan job, queueSize),
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		subscribed: make(map[string]string),
	}
}

// Start brings the bridge up: workers, the Home Assistant status listener,
// the per-device command subscriptions, and an initial discovery publish for
// every known device.
//
// Returns:
//   - error: If the status subscription or the roster build fails
func (b *Bridge) Start(ctx context.Context) error {
	var startErr error
	b.startOnce.Do(func() {
		for i := 0; i < workerCount; i++ {
			b.wg.Add(1)
			go b.worker()
		}
		b.wg.Add(1)
		go b.discoveryLoop()

		if err := b.broker.Subscribe(b.topics.HomeAssistantStatus(), b.qos, b.handleStatus); err != nil {
			startErr = fmt.Errorf("subscribing to home assistant status: %w", err)
			return
		}

		if err := b.Resubscribe(ctx); err != nil {
			startErr = err
			return
		}

		b.publishAllDiscovery(ctx)
	})
	return startErr
}

// Stop shuts the workers down. In-flight commands finish; queued jobs are
// discarded.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}

// Resubscribe rebuilds the per-device command subscriptions against the
// current registry. Call after devices are added or removed.
//
// Returns:
//   - error: If the registry cannot be listed; individual subscribe
//     failures are logged and skipped
func (b *Bridge) Resubscribe(ctx context.Context) error {
	devices, err := b.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing devices for subscription roster: %w", err)
	}

	desired := make(map[string]string, len(devices))
	for _, dev := range devices {
		desired[dev.DeviceID] = b.topics.DeviceCommands(dev.DeviceID)
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	// Drop subscriptions for devices no longer registered.
	for id, topic := range b.subscribed {
		if _, keep := desired[id]; keep {
			continue
		}
		if err := b.broker.Unsubscribe(topic); err != nil {
			b.logger.Warn("failed to unsubscribe removed device", "device_id", id, "error", err)
		}
		delete(b.subscribed, id)
	}

	// Subscribe new devices.
	for id, topic := range desired {
		if _, have := b.subscribed[id]; have {
			continue
		}
		if err := b.broker.Subscribe(topic, b.qos, b.handleCommand); err != nil {
			b.logger.Error("failed to subscribe device commands", "device_id", id, "error", err)
			continue
		}
		b.subscribed[id] = topic
		b.logger.Debug("subscribed to device commands", "device_id", id, "topic", topic)
	}

	return nil
}

// SyncDevice registers a new or updated device with the broker: command
// subscription plus discovery entities.
func (b *Bridge) SyncDevice(ctx context.Context, dev *device.Device) error {
	if err := b.Resubscribe(ctx); err != nil {
		return err
	}
	return b.PublishDiscovery(dev)
}

// DropDevice removes a deleted device from the broker: subscription,
// discovery entities and retained state.
func (b *Bridge) DropDevice(ctx context.Context, deviceID string) error {
	if err := b.Resubscribe(ctx); err != nil {
		return err
	}
	return b.RemoveDiscovery(deviceID)
}

// handleCommand translates one command-topic message and queues it for a
// worker. It runs on the broker library's goroutines and must not publish
// or block.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, action, ok := b.topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("unroutable command topic %q", topic)
	}

	command, params, err := translate(action, payload)
	if err != nil {
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	select {
	case b.jobs <- job{deviceID: deviceID, command: command, params: params}:
		return nil
	default:
		return fmt.Errorf("device %s: command queue full, dropping %s", deviceID, command)
	}
}

// handleStatus reacts to Home Assistant's birth message by scheduling a
// discovery republish, so entities survive a Home Assistant restart.
func (b *Bridge) handleStatus(_ string, payload []byte) error {
	if string(payload) != "online" {
		return nil
	}
	select {
	case b.refresh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
	return nil
}

// worker executes queued commands and publishes their outcome.
func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case j := <-b.jobs:
			b.execute(j)
		}
	}
}

// discoveryLoop republishes discovery whenever Home Assistant comes back.
func (b *Bridge) discoveryLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case <-b.refresh:
			b.logger.Info("home assistant online, republishing discovery")
			ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
			b.publishAllDiscovery(ctx)
			cancel()
		}
	}
}

// publishAllDiscovery publishes discovery for every registered device.
func (b *Bridge) publishAllDiscovery(ctx context.Context) {
	devices, err := b.repo.List(ctx)
	if err != nil {
		b.logger.Error("failed to list devices for discovery", "error", err)
		return
	}
	for i := range devices {
		if err := b.PublishDiscovery(&devices[i]); err != nil {
			b.logger.Error("failed to publish discovery", "device_id", devices[i].DeviceID, "error", err)
		}
	}
}

// execute runs one job through the dispatcher and publishes the outcome.
func (b *Bridge) execute(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	defer cancel()

	res, err := b.exec.Execute(ctx, j.deviceID, j.command, j.params)
	if err != nil {
		b.logger.Warn("command failed",
			"device_id", j.deviceID,
			"command", j.command,
			"error", err,
		)
	} else {
		b.logger.Debug("command executed",
			"device_id", j.deviceID,
			"command", j.command,
			"elapsed", res.Elapsed,
		)
	}

	b.publishOutcome(j, res, err)
}

// stateDoc is the JSON state document published after each command.
type stateDoc struct {
	DeviceID    string `json:"device_id"`
	LastCommand string `json:"last_command"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// publishOutcome publishes the state document and, when the outcome says
// something about reachability, the retained availability flag.
func (b *Bridge) publishOutcome(j job, res dispatch.Result, cmdErr error) {
	doc := stateDoc{
		DeviceID:    j.deviceID,
		LastCommand: j.command,
		Success:     res.Success,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if cmdErr != nil {
		doc.Error = cmdErr.Error()
	}

	payload, err := json.Marshal(doc)
	if err == nil {
		if err := b.broker.Publish(b.topics.DeviceState(j.deviceID), payload, b.qos, false); err != nil {
			b.logger.Warn("failed to publish state", "device_id", j.deviceID, "error", err)
		}
	}

	switch {
	case res.Success:
		b.setAvailability(j.deviceID, true)
	case errors.Is(cmdErr, lightning.ErrDeviceUnreachable), errors.Is(cmdErr, dispatch.ErrDeviceAsleep):
		b.setAvailability(j.deviceID, false)
	}
}

// PublishAvailability publishes a device's retained online/offline flag.
func (b *Bridge) PublishAvailability(deviceID string, online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}
	return b.broker.Publish(b.topics.DeviceAvailability(deviceID), []byte(payload), b.qos, true)
}

func (b *Bridge) setAvailability(deviceID string, online bool) {
	if err := b.PublishAvailability(deviceID, online); err != nil {
		b.logger.Warn("failed to publish availability", "device_id", deviceID, "error", err)
	}
}
