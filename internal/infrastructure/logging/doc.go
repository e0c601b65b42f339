// Package logging provides structured logging for HMS FireTV.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, plus default fields identifying the service.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("device paired", "device_id", id)
//	mqttLog := log.With("component", "bridge")
package logging
