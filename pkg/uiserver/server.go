package uiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ebaauw/homebridge-lib-go/pkg/delegate"
	"github.com/ebaauw/homebridge-lib-go/pkg/hap"
)

const shutdownTimeout = 5 * time.Second

// Server is the UI channel of a platform.
type Server struct {
	platform *delegate.Platform
	logger   *slog.Logger
	router   chi.Router
}

// AccessoryView is the JSON form of an accessory delegate.
type AccessoryView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	UUID     string         `json:"uuid"`
	Values   map[string]any `json:"values"`
	Services []ServiceView  `json:"services,omitempty"`
}

// ServiceView is the JSON form of a service delegate.
type ServiceView struct {
	Key    string         `json:"key"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Values map[string]any `json:"values"`
}

type setRequest struct {
	Value any `json:"value"`
}

// New creates the server for p. A nil logger discards.
func New(p *delegate.Platform, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{platform: p, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.health)
	r.Route("/api/accessories", func(r chi.Router) {
		r.Get("/", s.listAccessories)
		r.Get("/{id}", s.getAccessory)
		r.Put("/{id}/values/{key}", s.setProperty)
		r.Put("/{id}/services/{service}/values/{key}", s.setCharacteristic)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve serves on l until ctx ends.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	s.logger.Info("ui server listening", "addr", l.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("ui server shutdown: %w", err)
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"platform": s.platform.Name(),
		"version":  s.platform.Version(),
	})
}

func (s *Server) listAccessories(w http.ResponseWriter, _ *http.Request) {
	out := []AccessoryView{}
	for _, a := range s.platform.AccessoryDelegates() {
		out = append(out, AccessoryView{
			ID:     a.ID(),
			Name:   a.Name(),
			UUID:   a.Host().UUID(),
			Values: a.Values().Snapshot(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAccessory(w http.ResponseWriter, r *http.Request) {
	a := s.accessory(w, r)
	if a == nil {
		return
	}
	view := AccessoryView{
		ID:     a.ID(),
		Name:   a.Name(),
		UUID:   a.Host().UUID(),
		Values: a.Values().Snapshot(),
	}
	for _, sd := range a.Services() {
		view.Services = append(view.Services, ServiceView{
			Key:    sd.Key(),
			Type:   sd.Type().Name,
			Name:   sd.Name(),
			Values: sd.Values().Snapshot(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) setProperty(w http.ResponseWriter, r *http.Request) {
	a := s.accessory(w, r)
	if a == nil {
		return
	}
	s.set(w, r, a.Values())
}

func (s *Server) setCharacteristic(w http.ResponseWriter, r *http.Request) {
	a := s.accessory(w, r)
	if a == nil {
		return
	}
	sd := a.Service(chi.URLParam(r, "service"))
	if sd == nil {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	s.set(w, r, sd.Values())
}

func (s *Server) accessory(w http.ResponseWriter, r *http.Request) *delegate.AccessoryDelegate {
	a := s.platform.AccessoryDelegate(chi.URLParam(r, "id"))
	if a == nil {
		http.Error(w, "accessory not found", http.StatusNotFound)
	}
	return a
}

func (s *Server) set(w http.ResponseWriter, r *http.Request, values *delegate.Values) {
	key := chi.URLParam(r, "key")
	var req setRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := values.Set(key, req.Value); err != nil {
		switch {
		case errors.Is(err, delegate.ErrUnknownKey):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, hap.ErrInvalidValue):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error("ui set failed", "key", key, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	v, _ := values.Get(key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
