package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hms-homelab/hms-firetv/internal/apps"
	"github.com/hms-homelab/hms-firetv/internal/device"
)

// deviceExists resolves the {id} URL parameter against the registry, writing
// the error response itself when the device is missing or the lookup fails.
func (s *Server) deviceExists(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := s.devices.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
		} else {
			writeInternalError(w, "failed to get device")
		}
		return id, false
	}
	return id, true
}

// handleListApps returns the apps installed on a device.
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceExists(w, r)
	if !ok {
		return
	}

	list, err := s.apps.ListForDevice(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list apps", "device_id", id, "error", err)
		writeInternalError(w, "failed to list apps")
		return
	}
	if list == nil {
		list = []apps.App{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": id,
		"count":     len(list),
		"apps":      list,
	})
}

// addAppRequest is the body for registering an app against a device.
type addAppRequest struct {
	PackageName string `json:"package_name"`
	AppName     string `json:"app_name"`
	IconURL     string `json:"icon_url"`
	IsFavorite  bool   `json:"is_favorite"`
}

// handleAddApp registers a single app for a device. Re-adding an existing
// package updates its name, icon and favourite flag.
func (s *Server) handleAddApp(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceExists(w, r)
	if !ok {
		return
	}

	var req addAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PackageName == "" {
		writeBadRequest(w, "missing 'package_name' field")
		return
	}
	if req.AppName == "" {
		writeBadRequest(w, "missing 'app_name' field")
		return
	}

	app := &apps.App{
		DeviceID:    id,
		PackageName: req.PackageName,
		AppName:     req.AppName,
		IconURL:     req.IconURL,
		IsFavorite:  req.IsFavorite,
	}
	if err := s.apps.Add(r.Context(), app); err != nil {
		s.logger.Error("failed to add app", "device_id", id, "package", req.PackageName, "error", err)
		writeInternalError(w, "failed to add app")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"app":     app,
	})
}

// bulkAddRequest selects which popular apps to seed onto a device.
// An empty category seeds the whole catalogue.
type bulkAddRequest struct {
	Category string `json:"category"`
}

// handleBulkAddApps seeds a device's app list from the popular catalogue.
func (s *Server) handleBulkAddApps(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceExists(w, r)
	if !ok {
		return
	}

	var req bulkAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.apps.SeedFromPopular(r.Context(), id, req.Category); err != nil {
		s.logger.Error("failed to seed apps", "device_id", id, "category", req.Category, "error", err)
		writeInternalError(w, "failed to seed apps")
		return
	}

	list, err := s.apps.ListForDevice(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to list apps")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": id,
		"count":     len(list),
		"apps":      list,
	})
}

// handleRemoveApp deletes one app row for a device.
func (s *Server) handleRemoveApp(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceExists(w, r)
	if !ok {
		return
	}
	pkg := chi.URLParam(r, "package")

	if err := s.apps.Remove(r.Context(), id, pkg); err != nil {
		if errors.Is(err, apps.ErrAppNotFound) {
			writeNotFound(w, "app not found")
			return
		}
		writeInternalError(w, "failed to remove app")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"device_id":    id,
		"package_name": pkg,
	})
}

// setFavoriteRequest toggles an app's favourite flag.
type setFavoriteRequest struct {
	IsFavorite bool `json:"is_favorite"`
}

// handleSetFavorite marks or unmarks an app as a favourite.
func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deviceExists(w, r)
	if !ok {
		return
	}
	pkg := chi.URLParam(r, "package")

	var req setFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.apps.SetFavorite(r.Context(), id, pkg, req.IsFavorite); err != nil {
		if errors.Is(err, apps.ErrAppNotFound) {
			writeNotFound(w, "app not found")
			return
		}
		writeInternalError(w, "failed to update app")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"device_id":    id,
		"package_name": pkg,
		"is_favorite":  req.IsFavorite,
	})
}

// handleListPopularApps returns the built-in popular app catalogue,
// optionally filtered with ?category=.
func (s *Server) handleListPopularApps(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	list, err := s.apps.ListPopular(r.Context(), category)
	if err != nil {
		s.logger.Error("failed to list popular apps", "error", err)
		writeInternalError(w, "failed to list popular apps")
		return
	}
	if list == nil {
		list = []apps.PopularApp{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(list),
		"apps":    list,
	})
}
