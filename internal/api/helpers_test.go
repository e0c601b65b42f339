package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hms-homelab/hms-firetv/internal/apps"
	"github.com/hms-homelab/hms-firetv/internal/device"
	"github.com/hms-homelab/hms-firetv/internal/dispatch"
	"github.com/hms-homelab/hms-firetv/internal/history"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/config"
	"github.com/hms-homelab/hms-firetv/internal/infrastructure/logging"
	"github.com/hms-homelab/hms-firetv/internal/lightning"
)

// fakeRepo is an in-memory device.Repository.
type fakeRepo struct {
	devices map[string]*device.Device
	err     error
}

func newFakeRepo(devs ...*device.Device) *fakeRepo {
	r := &fakeRepo{devices: make(map[string]*device.Device)}
	for _, d := range devs {
		r.devices[d.DeviceID] = d
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, d *device.Device) error {
	if r.err != nil {
		return r.err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := r.devices[d.DeviceID]; ok {
		return device.ErrExists
	}
	cp := *d
	r.devices[d.DeviceID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, deviceID string) (*device.Device, error) {
	if r.err != nil {
		return nil, r.err
	}
	d, ok := r.devices[deviceID]
	if !ok {
		return nil, device.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeRepo) List(_ context.Context) ([]device.Device, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeRepo) ListByStatus(_ context.Context, status device.Status) ([]device.Device, error) {
	var out []device.Device
	for _, d := range r.devices {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, d *device.Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := r.devices[d.DeviceID]; !ok {
		return device.ErrNotFound
	}
	cp := *d
	r.devices[d.DeviceID] = &cp
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, deviceID string) error {
	if _, ok := r.devices[deviceID]; !ok {
		return device.ErrNotFound
	}
	delete(r.devices, deviceID)
	return nil
}

func (r *fakeRepo) SetPIN(_ context.Context, deviceID, pin string, ttl time.Duration) error {
	d, ok := r.devices[deviceID]
	if !ok {
		return device.ErrNotFound
	}
	expires := time.Now().UTC().Add(ttl)
	d.PINCode = pin
	d.PINExpiresAt = &expires
	d.Status = device.StatusPairing
	return nil
}

func (r *fakeRepo) CompletePairing(_ context.Context, deviceID, token string) error {
	d, ok := r.devices[deviceID]
	if !ok {
		return device.ErrNotFound
	}
	d.ClientToken = token
	d.PINCode = ""
	d.PINExpiresAt = nil
	d.Status = device.StatusOnline
	return nil
}

func (r *fakeRepo) ResetPairing(_ context.Context, deviceID string) error {
	d, ok := r.devices[deviceID]
	if !ok {
		return device.ErrNotFound
	}
	d.ClientToken = ""
	d.PINCode = ""
	d.PINExpiresAt = nil
	d.Status = device.StatusOffline
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, deviceID string, status device.Status) error {
	d, ok := r.devices[deviceID]
	if !ok {
		return device.ErrNotFound
	}
	d.Status = status
	return nil
}

func (r *fakeRepo) TouchLastSeen(_ context.Context, deviceID string, status device.Status) error {
	d, ok := r.devices[deviceID]
	if !ok {
		return device.ErrNotFound
	}
	now := time.Now().UTC()
	d.LastSeenAt = &now
	d.Status = status
	return nil
}

// execCall records one dispatched command.
type execCall struct {
	deviceID string
	command  string
	params   map[string]any
}

// fakeExecutor scripts command outcomes and records calls.
type fakeExecutor struct {
	calls       []execCall
	invalidated []string
	res         dispatch.Result
	err         error
}

func (e *fakeExecutor) Execute(_ context.Context, deviceID, command string, params map[string]any) (dispatch.Result, error) {
	e.calls = append(e.calls, execCall{deviceID: deviceID, command: command, params: params})
	if e.err != nil {
		return dispatch.Result{DeviceID: deviceID, Command: command}, e.err
	}
	res := e.res
	res.DeviceID = deviceID
	res.Command = command
	res.Success = true
	return res, nil
}

func (e *fakeExecutor) InvalidateClient(deviceID string) {
	e.invalidated = append(e.invalidated, deviceID)
}

// fakeHistory scripts history and statistics reads.
type fakeHistory struct {
	records []history.Record
	sys     *history.SystemStats
	perDev  []history.DeviceStats
	err     error

	lastDeviceID string
	lastLimit    int
	lastOffset   int
}

func (h *fakeHistory) ListForDevice(_ context.Context, deviceID string, limit, offset int) ([]history.Record, error) {
	h.lastDeviceID, h.lastLimit, h.lastOffset = deviceID, limit, offset
	return h.records, h.err
}

func (h *fakeHistory) SystemStats(_ context.Context) (*history.SystemStats, error) {
	return h.sys, h.err
}

func (h *fakeHistory) DeviceStats(_ context.Context) ([]history.DeviceStats, error) {
	return h.perDev, h.err
}

// fakeApps is an in-memory AppStore keyed by device then package.
type fakeApps struct {
	byDevice map[string][]apps.App
	popular  []apps.PopularApp
	err      error
}

func newFakeApps() *fakeApps {
	return &fakeApps{byDevice: make(map[string][]apps.App)}
}

func (a *fakeApps) ListForDevice(_ context.Context, deviceID string) ([]apps.App, error) {
	return a.byDevice[deviceID], a.err
}

func (a *fakeApps) Add(_ context.Context, app *apps.App) error {
	if a.err != nil {
		return a.err
	}
	list := a.byDevice[app.DeviceID]
	for i := range list {
		if list[i].PackageName == app.PackageName {
			list[i] = *app
			return nil
		}
	}
	a.byDevice[app.DeviceID] = append(list, *app)
	return nil
}

func (a *fakeApps) Remove(_ context.Context, deviceID, packageName string) error {
	list := a.byDevice[deviceID]
	for i := range list {
		if list[i].PackageName == packageName {
			a.byDevice[deviceID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return apps.ErrAppNotFound
}

func (a *fakeApps) SetFavorite(_ context.Context, deviceID, packageName string, favorite bool) error {
	list := a.byDevice[deviceID]
	for i := range list {
		if list[i].PackageName == packageName {
			list[i].IsFavorite = favorite
			return nil
		}
	}
	return apps.ErrAppNotFound
}

func (a *fakeApps) RemoveAll(_ context.Context, deviceID string) error {
	delete(a.byDevice, deviceID)
	return nil
}

func (a *fakeApps) ListPopular(_ context.Context, category string) ([]apps.PopularApp, error) {
	if category == "" {
		return a.popular, a.err
	}
	var out []apps.PopularApp
	for _, p := range a.popular {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, a.err
}

func (a *fakeApps) SeedFromPopular(_ context.Context, deviceID, category string) error {
	if a.err != nil {
		return a.err
	}
	pops, _ := a.ListPopular(context.Background(), category)
	for _, p := range pops {
		_ = a.Add(context.Background(), &apps.App{
			DeviceID:    deviceID,
			PackageName: p.PackageName,
			AppName:     p.AppName,
			IconURL:     p.IconURL,
		})
	}
	return nil
}

// fakeSyncer records roster notifications.
type fakeSyncer struct {
	synced  []string
	dropped []string
}

func (s *fakeSyncer) SyncDevice(_ context.Context, dev *device.Device) error {
	s.synced = append(s.synced, dev.DeviceID)
	return nil
}

func (s *fakeSyncer) DropDevice(_ context.Context, deviceID string) error {
	s.dropped = append(s.dropped, deviceID)
	return nil
}

// fakePairingClient scripts the on-device pairing exchange.
type fakePairingClient struct {
	pin        string
	token      string
	displayErr error
	verifyErr  error

	verified []string
}

func (c *fakePairingClient) DisplayPIN(_ context.Context, _ string) (string, error) {
	return c.pin, c.displayErr
}

func (c *fakePairingClient) VerifyPIN(_ context.Context, pin string) (string, error) {
	c.verified = append(c.verified, pin)
	if c.verifyErr != nil {
		return "", c.verifyErr
	}
	return c.token, nil
}

// env bundles a server with its fakes for assertions.
type env struct {
	server  *Server
	repo    *fakeRepo
	exec    *fakeExecutor
	history *fakeHistory
	apps    *fakeApps
	syncer  *fakeSyncer
	pairing *fakePairingClient
	handler http.Handler
}

func testLightningConfig() config.LightningConfig {
	return config.LightningConfig{
		APIKey:      "0987654321",
		ControlPort: 8080,
		WakePort:    8009,
		Timeouts:    config.LightningTimeoutConfig{Wake: 5, Health: 2, Command: 10},
		WakeSettle:  3,
		PINTTL:      5,
	}
}

func newTestEnv(t *testing.T, devs ...*device.Device) *env {
	t.Helper()

	e := &env{
		repo:    newFakeRepo(devs...),
		exec:    &fakeExecutor{},
		history: &fakeHistory{},
		apps:    newFakeApps(),
		syncer:  &fakeSyncer{},
		pairing: &fakePairingClient{pin: "1234", token: "tok-abc"},
	}

	server, err := New(Deps{
		Lightning: testLightningConfig(),
		Logger:    logging.Default(),
		Devices:   e.repo,
		Executor:  e.exec,
		History:   e.history,
		Apps:      e.apps,
		Bridge:    e.syncer,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	server.pairing = func(_ lightning.Config) pairingClient { return e.pairing }

	e.server = server
	e.handler = server.buildRouter()
	return e
}

func testDevice(id string) *device.Device {
	return &device.Device{
		DeviceID:  id,
		Name:      "Living Room",
		IPAddress: "192.168.1.42",
		APIKey:    "0987654321",
		Status:    device.StatusOnline,
	}
}

// do runs one request through the router and decodes the JSON response.
func (e *env) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if len(rec.Body.Bytes()) > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, decoded
}

func wantStatus(t *testing.T, got, want int, body map[string]any) {
	t.Helper()
	if got != want {
		t.Fatalf("status = %d, want %d (body: %v)", got, want, body)
	}
}

func wantErrorCode(t *testing.T, body map[string]any, code string) {
	t.Helper()
	if got, _ := body["code"].(string); got != code {
		t.Errorf("error code = %q, want %q", got, code)
	}
}
