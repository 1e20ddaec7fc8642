package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Agrid-Dev/zonesim/internal/ports"
	"github.com/Agrid-Dev/zonesim/internal/timeseries"
	"github.com/Agrid-Dev/zonesim/internal/zone"
)

type Server struct {
	svc      ports.ZoneService
	srv      *http.Server
	deviceID string

	metrics   http.Handler
	accessLog io.Writer
	now       func() time.Time
}

type Option func(*Server)

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithAccessLog writes one Apache-style line per request to w.
func WithAccessLog(w io.Writer) Option { return func(s *Server) { s.accessLog = w } }

// WithClock stamps input rows posted without a timestamp.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New returns a runnable server.
func New(svc ports.ZoneService, addr string, deviceID string, opts ...Option) *Server {
	s := &Server{svc: svc, deviceID: deviceID, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/setpoint", s.handlePostSetpoint).Methods(http.MethodPost)
	r.HandleFunc("/v1/setpoint", s.handleDeleteSetpoint).Methods(http.MethodDelete)
	r.HandleFunc("/v1/inputs", s.handlePostInput).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, r)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w)
}

func (s *Server) handlePostSetpoint(w http.ResponseWriter, r *http.Request) {
	// body: {"value": 21.5}
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	v, err := timeseries.DecodeSetpoint(b)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.UpdateSetpoint(v); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondSnapshot(w)
}

func (s *Server) handleDeleteSetpoint(w http.ResponseWriter, _ *http.Request) {
	s.svc.ClearSetpoint()
	s.respondSnapshot(w)
}

func (s *Server) handlePostInput(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	in, err := timeseries.DecodeInput(b, s.now().UTC())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.svc.Step(in)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, timeseries.ToOutputDTO(out))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, zone.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, zone.ErrUnstable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ---- generic helpers ----
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	dto := timeseries.ToSnapshotDTO(s.svc.Get())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
