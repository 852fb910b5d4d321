package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sweeney/thermostat/internal/control"
	"github.com/sweeney/thermostat/internal/logic"
)

type setpointResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, setpointResponse{Error: msg})
}

// parseSetpointForm reads preset=, value=, and enabled= from a form or query.
func parseSetpointForm(r *http.Request) (control.SetpointRequest, error) {
	var req control.SetpointRequest
	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("parse form: %w", err)
	}

	if p := strings.TrimSpace(r.Form.Get("preset")); p != "" {
		preset, err := logic.ParsePreset(strings.ToLower(p))
		if err != nil {
			return req, err
		}
		req.Preset = preset
	}
	if v := strings.TrimSpace(r.Form.Get("value")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid value %q", v)
		}
		req.Value = &f
	}
	if e := strings.TrimSpace(r.Form.Get("enabled")); e != "" {
		b, err := parseEnabled(e)
		if err != nil {
			return req, err
		}
		req.Enabled = &b
	}

	if req.Preset == "" && req.Value == nil && req.Enabled == nil {
		return req, errors.New("expected preset, value, or enabled")
	}
	return req, nil
}

func parseEnabled(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid enabled %q", s)
	}
	return b, nil
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Host
}
