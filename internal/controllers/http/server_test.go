package httpctrl

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Agrid-Dev/zonesim/internal/testutil"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func TestGET_v1_ReturnsSnapshot(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[map[string]any](t, rr)
	if got["hvac_mode"] != "heating" {
		t.Fatalf("expected hvac_mode=heating, got %v", got["hvac_mode"])
	}
	if got["device_id"] != "default" {
		t.Fatalf("expected device_id=default, got %v", got["device_id"])
	}
	if got["setpoint_C"] != 22.0 || got["setpoint_override_C"] != nil {
		t.Fatalf("expected configured setpoint without override, got %v / %v", got["setpoint_C"], got["setpoint_override_C"])
	}
}

func TestPOST_setpoint(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/setpoint", 23.5)
	assertStatus(t, rr, http.StatusOK)

	if !f.UpdateSetpointCalled || f.UpdateSetpointArg != 23.5 {
		t.Fatalf("expected UpdateSetpoint(23.5), got called=%v arg=%v", f.UpdateSetpointCalled, f.UpdateSetpointArg)
	}
	got := decodeJSON[map[string]any](t, rr)
	if got["setpoint_override_C"] != 23.5 {
		t.Fatalf("expected the override in the response, got %v", got["setpoint_override_C"])
	}
}

func TestPOST_setpoint_BareNumber(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/setpoint", 19)
	assertStatus(t, rr, http.StatusOK)
	if f.UpdateSetpointArg != 19 {
		t.Fatalf("expected UpdateSetpoint(19), got %v", f.UpdateSetpointArg)
	}
}

func TestPOST_setpoint_InvalidPayload(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/setpoint", map[string]any{
		"setpoint": 21,
	})
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
	if f.UpdateSetpointCalled {
		t.Fatal("service must not be called on a bad payload")
	}
}

func TestPOST_setpoint_ErrorFromService(t *testing.T) {
	srv, f := newTestServer()
	f.UpdateSetpointErr = zone.ErrSetpointOutOfRange

	rr := postValueEndpoint(t, srv, "/v1/setpoint", 999)
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)
}

func TestDELETE_setpoint(t *testing.T) {
	srv, f := newTestServer()
	_ = f.UpdateSetpoint(25)

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodDelete, "/v1/setpoint", nil)
	assertStatus(t, rr, http.StatusOK)
	if !f.ClearSetpointCalled || f.S.SetpointOverride != nil {
		t.Fatal("expected ClearSetpoint to be called")
	}
}

func TestPOST_inputs(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/inputs", map[string]any{
		"T_out": 4.5,
		"N_occ": 3,
		"I_sol": 250,
	})
	assertStatus(t, rr, http.StatusOK)

	if len(f.StepCalls) != 1 {
		t.Fatalf("expected one Step call, got %d", len(f.StepCalls))
	}
	in := f.StepCalls[0]
	if in.OutdoorTemperature != 4.5 || in.Occupancy != 3 || in.SolarGain != 0.25 || !in.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected input row %+v", in)
	}
	got := decodeJSON[map[string]any](t, rr)
	if got["timestamp"] != "2025-06-01T09:30:00Z" || got["hvac_mode"] != "heating" {
		t.Fatalf("unexpected output %v", got)
	}
}

func TestPOST_inputs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		stepErr error
		want    int
	}{
		{"missing occupancy", map[string]any{"outdoor_temperature_C": 1}, nil, http.StatusBadRequest},
		{"rejected row", map[string]any{"outdoor_temperature_C": 1, "occupancy_count": 1}, zone.ErrInvalidInput, http.StatusBadRequest},
		{"unstable", map[string]any{"outdoor_temperature_C": 1, "occupancy_count": 1}, &zone.StabilityError{Variable: "co2"}, http.StatusUnprocessableEntity},
		{"other", map[string]any{"outdoor_temperature_C": 1, "occupancy_count": 1}, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, f := newTestServer()
			f.StepErr = tt.stepErr
			rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/inputs", tt.body)
			assertStatus(t, rr, tt.want)
			_ = assertErrorResponse(t, rr)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer()
	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPut, "/v1", nil)
	assertStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer()
	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/healthz", nil)
	assertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("expected ok, got %q", rr.Body.String())
	}
}

func TestMetricsAndAccessLog(t *testing.T) {
	f := testutil.NewFakeZoneService()
	var access bytes.Buffer
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("zonesim_steps_total 12\n"))
	})
	srv := New(f, ":0", "default", WithMetrics(metrics), WithAccessLog(&access))

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/metrics", nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "zonesim_steps_total") {
		t.Fatalf("unexpected metrics body %q", rr.Body.String())
	}
	if !strings.Contains(access.String(), "GET /metrics") {
		t.Fatalf("expected an access log line, got %q", access.String())
	}

	noMetrics, _ := newTestServer()
	rr = doJSONRequest(t, noMetrics.srv.Handler, http.MethodGet, "/metrics", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---- helpers ----

func newTestServer() (*Server, *testutil.FakeZoneService) {
	f := testutil.NewFakeZoneService()
	deviceID := "default"
	return New(f, ":0", deviceID, WithClock(func() time.Time { return fixedNow })), f
}

func doJSONRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal: %v body=%s", err, rr.Body.String())
	}
	return v
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON[struct {
		Error string `json:"error"`
	}](t, rr)
	if resp.Error == "" {
		t.Fatalf("expected non-empty error field, got body=%s", rr.Body.String())
	}
	return resp.Error
}

func postValueEndpoint[T any](t *testing.T, srv *Server, path string, value T) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONRequest(t, srv.srv.Handler, http.MethodPost, path, struct {
		Value T `json:"value"`
	}{Value: value})
}
