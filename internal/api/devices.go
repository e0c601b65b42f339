package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hms-homelab/hms-firetv/internal/device"
)

// deviceView is a device plus derived fields the clients expect. The
// pairing token itself never leaves the registry.
type deviceView struct {
	*device.Device
	IsPaired bool `json:"is_paired"`
}

func viewOf(dev *device.Device) deviceView {
	return deviceView{Device: dev, IsPaired: dev.IsPaired()}
}

// isValidationError reports whether err wraps any of the registry's
// validation sentinels.
func isValidationError(err error) bool {
	for _, sentinel := range []error{
		device.ErrInvalidDevice,
		device.ErrInvalidID,
		device.ErrInvalidName,
		device.ErrInvalidAddress,
		device.ErrInvalidStatus,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// handleListDevices returns all devices, optionally filtered by status.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		devices []device.Device
		err     error
	)
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		devices, err = s.devices.ListByStatus(ctx, device.Status(statusStr))
	} else {
		devices, err = s.devices.List(ctx)
	}
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	views := make([]deviceView, len(devices))
	for i := range devices {
		views[i] = viewOf(&devices[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(dev))
}

// createDeviceRequest is the body for registering a device.
type createDeviceRequest struct {
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	IPAddress  string `json:"ip_address"`
	APIKey     string `json:"api_key"`
	ADBEnabled bool   `json:"adb_enabled"`
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.lightning.APIKey
	}

	dev := &device.Device{
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		IPAddress:  req.IPAddress,
		APIKey:     apiKey,
		Status:     device.StatusOffline,
		ADBEnabled: req.ADBEnabled,
	}

	ctx := r.Context()
	if err := s.devices.Create(ctx, dev); err != nil {
		switch {
		case errors.Is(err, device.ErrExists):
			writeConflict(w, "device already registered")
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	if s.bridge != nil {
		if err := s.bridge.SyncDevice(ctx, dev); err != nil {
			s.logger.Warn("failed to sync new device to broker", "device_id", dev.DeviceID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, viewOf(dev))
}

// updateDeviceRequest is the body for updating a device. Absent fields are
// left unchanged.
type updateDeviceRequest struct {
	Name       *string `json:"name"`
	IPAddress  *string `json:"ip_address"`
	APIKey     *string `json:"api_key"`
	ADBEnabled *bool   `json:"adb_enabled"`
}

// handleUpdateDevice updates a device's mutable fields. Changing the
// address or key invalidates the cached protocol client.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	dev, err := s.devices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	credentialsChanged := false
	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.IPAddress != nil && *req.IPAddress != dev.IPAddress {
		dev.IPAddress = *req.IPAddress
		credentialsChanged = true
	}
	if req.APIKey != nil && *req.APIKey != dev.APIKey {
		dev.APIKey = *req.APIKey
		credentialsChanged = true
	}
	if req.ADBEnabled != nil {
		dev.ADBEnabled = *req.ADBEnabled
	}

	if err := s.devices.Update(ctx, dev); err != nil {
		switch {
		case errors.Is(err, device.ErrNotFound):
			writeNotFound(w, "device not found")
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, "failed to update device")
		}
		return
	}

	if credentialsChanged {
		s.executor.InvalidateClient(id)
	}
	if s.bridge != nil {
		if err := s.bridge.SyncDevice(ctx, dev); err != nil {
			s.logger.Warn("failed to sync updated device to broker", "device_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, viewOf(dev))
}

// handleDeleteDevice removes a device, its apps and its broker presence.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := s.devices.Delete(ctx, id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	s.executor.InvalidateClient(id)
	if s.bridge != nil {
		if err := s.bridge.DropDevice(ctx, id); err != nil {
			s.logger.Warn("failed to drop device from broker", "device_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": id,
	})
}

// handleDeviceStatus returns a compact status summary for one device.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	resp := map[string]any{
		"device_id":   dev.DeviceID,
		"name":        dev.Name,
		"status":      dev.Status,
		"ip_address":  dev.IPAddress,
		"is_paired":   dev.IsPaired(),
		"adb_enabled": dev.ADBEnabled,
	}
	if dev.LastSeenAt != nil {
		resp["last_seen_at"] = dev.LastSeenAt
	}
	writeJSON(w, http.StatusOK, resp)
}
