package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

type sessionRequest struct {
	DeviceID string `json:"deviceId"`
	Preset   string `json:"preset,omitempty"`
	// Options overlays the configured defaults; absent fields keep them.
	Options json.RawMessage `json:"options,omitempty"`
}

type specsResponse struct {
	Specs     adb.Specs     `json:"specs"`
	Suggested adb.Suggested `json:"suggested"`
}

type sessionResponse struct {
	mirror.Status
	Stats *mirror.Stats `json:"stats,omitempty"`
}

type previewResponse struct {
	Args    []string `json:"args"`
	Command string   `json:"command"`
}

type presetResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Options     mirror.Options `json:"options"`
}

type healthResponse struct {
	Status health.Status  `json:"status"`
	Checks []health.Check `json:"checks"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inv.ListDevices(r.Context()))
}

func (s *Server) handleMonitoredDevices(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, []adb.Device{})
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.CurrentDevices())
}

func (s *Server) handleDeviceSpecs(w http.ResponseWriter, r *http.Request) {
	specs, ok := s.inv.Specs(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "adb is not configured")
		return
	}
	writeJSON(w, http.StatusOK, specsResponse{Specs: specs, Suggested: adb.SuggestQuality(specs)})
}

func (s *Server) handleConnectWifi(w http.ResponseWriter, r *http.Request) {
	res := s.inv.ConnectWifi(context.WithoutCancel(r.Context()), r.PathValue("id"))
	writeJSON(w, resultStatus(res.Success), res)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	res := s.inv.Disconnect(r.Context(), r.PathValue("id"))
	writeJSON(w, resultStatus(res.Success), res)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Status: s.sessions.Status()}
	if stats, ok := s.sessions.ProcessStats(); ok {
		resp.Stats = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLastSession(w http.ResponseWriter, r *http.Request) {
	last, ok := s.sessions.LastSession()
	if !ok {
		writeError(w, http.StatusNotFound, "no session to restore")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeSessionRequest(w, r)
	if !ok {
		return
	}
	// The session outlives the request.
	res := s.sessions.Start(context.WithoutCancel(r.Context()), req.DeviceID, opts)
	writeJSON(w, resultStatus(res.Success), res)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if s.policy != nil {
		s.policy.Cancel()
	}
	res := s.sessions.Stop(true)
	writeJSON(w, resultStatus(res.Success), res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := s.decodeSessionRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Args:    mirror.BuildArgs(req.DeviceID, opts),
		Command: mirror.CommandString(req.DeviceID, opts),
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	base := s.defaults()
	presets := s.presets.List()
	out := make([]presetResponse, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetResponse{Name: p.Name, Description: p.Description, Options: p.Apply(base)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: health.Healthy, Checks: []health.Check{}})
		return
	}
	overall := s.health.Overall()
	status := http.StatusOK
	if overall == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: overall, Checks: s.health.All()})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries := s.journal.Recent(limit)
	if entries == nil {
		writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// decodeSessionRequest resolves the options for a start or preview: the
// configured defaults, overlaid with the request's options, with the
// preset applied on top.
func (s *Server) decodeSessionRequest(w http.ResponseWriter, r *http.Request) (sessionRequest, mirror.Options, bool) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, mirror.Options{}, false
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return req, mirror.Options{}, false
	}

	opts := s.defaults()
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid options")
			return req, mirror.Options{}, false
		}
	}
	if req.Preset != "" {
		var ok bool
		if opts, ok = s.presets.Apply(req.Preset, opts); !ok {
			writeError(w, http.StatusBadRequest, "unknown preset "+strconv.Quote(req.Preset))
			return req, mirror.Options{}, false
		}
	}
	if errs := opts.Validate(); len(errs) > 0 {
		writeError(w, http.StatusBadRequest, errors.Join(errs...).Error())
		return req, mirror.Options{}, false
	}
	return req, opts, true
}

func resultStatus(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}
