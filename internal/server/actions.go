package server

import (
	"errors"
	"net/http"

	"github.com/jpalmerr/labconsole/internal/devices"
	"github.com/jpalmerr/labconsole/internal/notify"
	"github.com/jpalmerr/labconsole/internal/state"
)

// handleDismiss dismisses the surfaced notification. The reason query
// parameter is "close" (default) or "clickaway".
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Notifier == nil {
		s.writeError(w, http.StatusServiceUnavailable, "notifications are not managed")
		return
	}

	id := r.PathValue("id")
	reason := notify.ParseDismissReason(r.URL.Query().Get("reason"))
	dismissed := s.cfg.Notifier.Dismiss(id, reason)

	s.logger.Debug("notification dismiss requested",
		"notification", id,
		"reason", string(reason),
		"dismissed", dismissed,
	)
	s.writeJSON(w, http.StatusOK, map[string]bool{"dismissed": dismissed})
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.cfg.Store.Dispatch(state.ClearNotifications{})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.cfg.Store.Dispatch(state.ClearGlobalError())
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceAction runs connect, disconnect or refresh for one device and
// answers with the device's status entry afterwards.
func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Devices == nil {
		s.writeError(w, http.StatusServiceUnavailable, "device control is not configured")
		return
	}

	id := r.PathValue("id")
	var err error
	switch r.PathValue("action") {
	case "connect":
		err = s.cfg.Devices.Connect(r.Context(), id)
	case "disconnect":
		err = s.cfg.Devices.Disconnect(r.Context(), id)
	case "refresh":
		err = s.cfg.Devices.Refresh(r.Context(), id)
	default:
		s.writeError(w, http.StatusNotFound, "unknown device action")
		return
	}

	switch {
	case errors.Is(err, devices.ErrUnknownDevice):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, devices.ErrPlaceholder):
		s.writeError(w, http.StatusNotImplemented, err.Error())
		return
	case err != nil:
		// the failure is already in the store as a notice and device status
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	dev, _ := s.cfg.Store.Snapshot().Device(id)
	s.writeJSON(w, http.StatusOK, dev)
}
