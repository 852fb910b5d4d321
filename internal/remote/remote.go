// Package remote reconciles the local setpoint with a remote authority.
//
// The node reports its reading and heater state with a GET request; the
// authority answers with {"ok","mode","setpoint","actualTemp"}. Only ok and
// setpoint influence local control.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
)

// ErrNotOK is returned when the authority answers with "ok": false.
var ErrNotOK = errors.New("remote: response not ok")

// maxBody bounds how much of a response is read.
const maxBody = 64 << 10

// Report is what the node tells the authority.
type Report struct {
	Reading logic.Reading
	Heater  logic.State // confirmed if fresh, else commanded
}

// Response is the authority's answer. Pointer fields are null or absent
// when the authority has nothing to say.
type Response struct {
	OK         bool     `json:"ok"`
	Mode       string   `json:"mode"`
	Setpoint   *float64 `json:"setpoint"`
	ActualTemp *float64 `json:"actualTemp"`
}

// Exchanger performs one report/response round trip.
type Exchanger interface {
	Exchange(ctx context.Context, r Report) (Response, error)
}

// HTTPExchanger talks to the authority over HTTP.
type HTTPExchanger struct {
	endpoint *url.URL
	client   *http.Client
}

// NewHTTPExchanger creates an exchanger. Every request is bounded by timeout.
func NewHTTPExchanger(endpoint string, timeout time.Duration) (*HTTPExchanger, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse remote endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote endpoint %q: unsupported scheme", endpoint)
	}
	return &HTTPExchanger{
		endpoint: u,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Query renders r as the request query: temp with one decimal (omitted
// without a reading) and cald as 0 or 1.
func Query(r Report) url.Values {
	q := url.Values{}
	if r.Reading.Valid {
		q.Set("temp", strconv.FormatFloat(r.Reading.Temp, 'f', 1, 64))
	}
	if r.Heater.On() {
		q.Set("cald", "1")
	} else {
		q.Set("cald", "0")
	}
	return q
}

// Exchange sends r and decodes the answer. A non-200 status, a malformed
// body, and "ok": false are all errors; in the last case the decoded
// response is returned alongside ErrNotOK.
func (h *HTTPExchanger) Exchange(ctx context.Context, r Report) (Response, error) {
	u := *h.endpoint
	q := u.Query()
	for k, v := range Query(r) {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("remote exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return Response{}, fmt.Errorf("remote exchange: status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode remote response: %w", err)
	}
	if !out.OK {
		return out, ErrNotOK
	}
	return out, nil
}
