package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hms-homelab/hms-firetv/internal/device"
	"github.com/hms-homelab/hms-firetv/internal/dispatch"
	"github.com/hms-homelab/hms-firetv/internal/lightning"
)

// handleCommand accepts the generic command envelope: a "command" field plus
// arbitrary parameters, e.g. {"command": "navigate", "direction": "up"}.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	command, _ := body["command"].(string)
	if command == "" {
		writeBadRequest(w, "missing 'command' field")
		return
	}
	delete(body, "command")
	if len(body) == 0 {
		body = nil
	}

	s.dispatch(w, r, command, body)
}

// handleNavigate is shorthand for navigation presses:
// {"direction": "up"} or {"action": "select"}.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction string `json:"direction"`
		Action    string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	params := map[string]any{}
	if body.Direction != "" {
		params["direction"] = body.Direction
	}
	if body.Action != "" {
		params["action"] = body.Action
	}
	if len(params) == 0 {
		writeBadRequest(w, "missing 'direction' or 'action' field")
		return
	}

	s.dispatch(w, r, "navigate", params)
}

// handleMedia maps {"action": "play"} onto the media_* command family.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Action == "" {
		writeBadRequest(w, "missing 'action' field")
		return
	}

	s.dispatch(w, r, "media_"+body.Action, nil)
}

// handleVolume maps {"action": "up"} onto volume_up, volume_down and mute.
func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var command string
	switch body.Action {
	case "up":
		command = "volume_up"
	case "down":
		command = "volume_down"
	case "mute":
		command = "mute"
	default:
		writeBadRequest(w, "action must be one of: up, down, mute")
		return
	}

	s.dispatch(w, r, command, nil)
}

// handleLaunchApp starts an app by package name or by friendly name:
// {"package": "com.netflix.ninja"} or {"app": "netflix"}.
func (s *Server) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Package string `json:"package"`
		App     string `json:"app"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	params := map[string]any{}
	if body.Package != "" {
		params["package"] = body.Package
	}
	if body.App != "" {
		params["app"] = body.App
	}
	if len(params) == 0 {
		writeBadRequest(w, "missing 'package' or 'app' field")
		return
	}

	s.dispatch(w, r, "launch_app", params)
}

// handleSendText types literal text into the focused input field.
func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Text == "" {
		writeBadRequest(w, "missing 'text' field")
		return
	}

	s.dispatch(w, r, "send_text", map[string]any{"text": body.Text})
}

// dispatch runs a routed command against the device in the URL and writes
// the outcome, mapping dispatch failures onto HTTP statuses.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, command string, params map[string]any) {
	id := chi.URLParam(r, "id")

	res, err := s.executor.Execute(r.Context(), id, command, params)
	if err != nil {
		s.writeDispatchError(w, id, command, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"device_id":        res.DeviceID,
		"command":          res.Command,
		"response_time_ms": res.Elapsed.Milliseconds(),
	})
}

func (s *Server) writeDispatchError(w http.ResponseWriter, id, command string, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, dispatch.ErrUnknownCommand),
		errors.Is(err, dispatch.ErrMissingParameter),
		errors.Is(err, dispatch.ErrUnknownApp):
		writeBadRequest(w, err.Error())
	case errors.Is(err, dispatch.ErrDeviceAsleep):
		writeError(w, http.StatusServiceUnavailable, ErrCodeAsleep,
			"device did not wake up; try again shortly")
	case errors.Is(err, lightning.ErrDeviceUnreachable):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceDown,
			"device is unreachable")
	default:
		s.logger.Error("command failed", "device_id", id, "command", command, "error", err)
		writeInternalError(w, "command execution failed")
	}
}
