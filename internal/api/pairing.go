package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hms-homelab/hms-firetv/internal/device"
)

// handlePairStart wakes the device, has it display a PIN, and records the
// PIN with its expiry in the registry.
//
// Rejected with 409 when the device already holds a pairing token; reset
// first to re-pair.
func (s *Server) handlePairStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
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

	if dev.IsPaired() {
		writeConflict(w, "device already paired; use pair/reset to unpair first")
		return
	}

	client := s.pairing(s.lightningConfig(dev))
	pin, err := client.DisplayPIN(ctx, dev.Name)
	if err != nil {
		s.logger.Warn("failed to display pairing PIN", "device_id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeDeviceDown,
			"failed to display PIN on TV; check device connectivity")
		return
	}

	ttl := s.lightning.GetPINTTL()
	if err := s.devices.SetPIN(ctx, id, pin, ttl); err != nil {
		writeInternalError(w, "failed to store pairing PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            "PIN displayed on TV. Enter the PIN to complete pairing.",
		"device_id":          id,
		"pin_expires_at":     time.Now().UTC().Add(ttl),
		"expires_in_seconds": int(ttl.Seconds()),
	})
}

// pairVerifyRequest is the body for completing a pairing attempt.
type pairVerifyRequest struct {
	PIN string `json:"pin"`
}

// handlePairVerify checks the entered PIN against the pending one and, on
// match, exchanges it with the device for a client token.
func (s *Server) handlePairVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req pairVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PIN == "" {
		writeBadRequest(w, "missing 'pin' field")
		return
	}

	dev, err := s.devices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if dev.PINCode == "" {
		writeBadRequest(w, "no pairing in progress; start pairing first")
		return
	}

	if !dev.IsPINValid(time.Now()) {
		// Clear the stale attempt so status reporting stays truthful.
		if err := s.devices.ResetPairing(ctx, id); err != nil {
			s.logger.Warn("failed to clear expired PIN", "device_id", id, "error", err)
		}
		writeError(w, http.StatusGone, ErrCodePINExpired, "PIN has expired; start pairing again")
		return
	}

	if req.PIN != dev.PINCode {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid PIN")
		return
	}

	client := s.pairing(s.lightningConfig(dev))
	token, err := client.VerifyPIN(ctx, req.PIN)
	if err != nil {
		s.logger.Warn("device rejected pairing PIN", "device_id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeDeviceDown,
			"failed to complete pairing with device")
		return
	}

	if err := s.devices.CompletePairing(ctx, id, token); err != nil {
		writeInternalError(w, "failed to store pairing token")
		return
	}

	// The cached client still carries no token; rebuild on next command.
	s.executor.InvalidateClient(id)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Device paired successfully",
		"device_id": id,
		"is_paired": true,
	})
}

// handlePairReset clears the token and any pending PIN so pairing can start
// over.
func (s *Server) handlePairReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if _, err := s.devices.GetByID(ctx, id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	if err := s.devices.ResetPairing(ctx, id); err != nil {
		writeInternalError(w, "failed to reset pairing")
		return
	}

	s.executor.InvalidateClient(id)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Device unpaired successfully",
		"device_id": id,
		"is_paired": false,
	})
}

// handlePairStatus reports whether the device is paired and whether a PIN
// is currently pending.
func (s *Server) handlePairStatus(w http.ResponseWriter, r *http.Request) {
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

	inProgress := dev.IsPINValid(time.Now())
	resp := map[string]any{
		"success":             true,
		"device_id":           id,
		"is_paired":           dev.IsPaired(),
		"pairing_in_progress": inProgress,
		"status":              dev.Status,
	}
	if inProgress {
		resp["pin_expires_at"] = dev.PINExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}
