// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package server exposes the overlay to a local client: the acquisition controls, the
// current frame, the marker selection and live frame updates over a websocket. A paired
// handset can push its orientation readings over a second websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wneessen/incident-ar/internal/logger"
	"github.com/wneessen/incident-ar/internal/orientation"
	"github.com/wneessen/incident-ar/internal/overlay"
	"github.com/wneessen/incident-ar/internal/presenter"
	"github.com/wneessen/incident-ar/internal/projection"
	"github.com/wneessen/incident-ar/internal/sensor"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 4096
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
	acquireTimeout  = 30 * time.Second
)

var ErrMissingDependency = errors.New("controller, overlay and presenter are required")

// Controller is the sensor acquisition as seen by the HTTP interface.
type Controller interface {
	State() sensor.State
	Acquire(ctx context.Context) error
	EnableCompass(ctx context.Context) error
	Teardown() error
}

// Overlay is the render loop as seen by the HTTP interface.
type Overlay interface {
	Frame() overlay.Frame
	Select(id uuid.UUID) (projection.Marker, error)
	Selection() (projection.Marker, bool)
	ClearSelection()
	Navigate() error
}

// Presenter formats frames and the detail panel.
type Presenter interface {
	Frame(frame overlay.Frame) (presenter.FrameView, error)
	Detail(m projection.Marker) (presenter.DetailView, error)
	Message(state sensor.State) string
}

// Server serves the HTTP and websocket interface.
type Server struct {
	controller Controller
	overlay    Overlay
	presenter  Presenter
	feed       *orientation.Feed
	hub        *Hub
	router     *mux.Router
	logger     *logger.Logger
	upgrader   websocket.Upgrader
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type stateResponse struct {
	State   sensor.State `json:"state"`
	Message string       `json:"message"`
	Error   string       `json:"error,omitempty"`
}

// New returns a Server. feed receives the readings pushed over the orientation websocket;
// a nil feed disables the endpoint.
func New(controller Controller, ov Overlay, pres Presenter, feed *orientation.Feed, log *logger.Logger) (*Server, error) {
	if controller == nil || ov == nil || pres == nil {
		return nil, ErrMissingDependency
	}
	s := &Server{
		controller: controller,
		overlay:    ov,
		presenter:  pres,
		feed:       feed,
		hub:        NewHub(),
		logger:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/acquire", s.handleAcquire).Methods(http.MethodPost)
	r.HandleFunc("/compass", s.handleCompass).Methods(http.MethodPost)
	r.HandleFunc("/teardown", s.handleTeardown).Methods(http.MethodPost)
	r.HandleFunc("/frame", s.handleFrame).Methods(http.MethodGet)
	r.HandleFunc("/markers/{id}/select", s.handleSelect).Methods(http.MethodPost)
	r.HandleFunc("/selection", s.handleSelection).Methods(http.MethodGet)
	r.HandleFunc("/selection", s.handleClearSelection).Methods(http.MethodDelete)
	r.HandleFunc("/selection/navigate", s.handleNavigate).Methods(http.MethodPost)
	r.HandleFunc("/ws/frames", s.handleFrameStream).Methods(http.MethodGet)
	if s.feed != nil {
		r.HandleFunc("/ws/orientation", s.handleOrientationStream).Methods(http.MethodGet)
	}
	return r
}

// Broadcast presents frame and sends it to all frame stream clients.
func (s *Server) Broadcast(frame overlay.Frame) {
	if s.hub.ClientCount() == 0 {
		return
	}
	view, err := s.presenter.Frame(frame)
	if err != nil {
		s.logger.Error("failed to present frame", logger.Err(err))
		return
	}
	if err = s.hub.Broadcast(view); err != nil {
		s.logger.Error("failed to broadcast frame", logger.Err(err))
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http interface listening", slog.String("addr", listener.Addr().String()))
		errChan <- srv.Serve(listener)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http interface: %w", err)
		}
		return nil
	}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeState(w, http.StatusOK, nil)
}

// handleAcquire runs the acquisition detached from the request so a client that drops
// mid-prompt does not abort it.
func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), acquireTimeout)
	defer cancel()
	err := s.controller.Acquire(ctx)
	s.writeState(w, statusFor(err), err)
}

func (s *Server) handleCompass(w http.ResponseWriter, r *http.Request) {
	err := s.controller.EnableCompass(r.Context())
	s.writeState(w, statusFor(err), err)
}

func (s *Server) handleTeardown(w http.ResponseWriter, _ *http.Request) {
	err := s.controller.Teardown()
	if err != nil {
		s.logger.Warn("failed to release camera cleanly", logger.Err(err))
	}
	s.writeState(w, http.StatusOK, nil)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	view, err := s.presenter.Frame(s.overlay.Frame())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid report id: %w", err))
		return
	}
	marker, err := s.overlay.Select(id)
	switch {
	case errors.Is(err, overlay.ErrNotVisible):
		s.writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, overlay.ErrDisposed):
		s.writeError(w, http.StatusGone, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeDetail(w, marker)
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	marker, ok := s.overlay.Selection()
	if !ok {
		s.writeError(w, http.StatusNotFound, overlay.ErrNoSelection)
		return
	}
	s.writeDetail(w, marker)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request) {
	s.overlay.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNavigate(w http.ResponseWriter, _ *http.Request) {
	if err := s.overlay.Navigate(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleFrameStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("frame stream upgrade failed", logger.Err(err))
		return
	}
	defer func() { _ = conn.Close() }()

	c := s.hub.register()
	defer c.close()

	// The current frame is sent right away so clients do not wait for the next sample
	if view, err := s.presenter.Frame(s.overlay.Frame()); err == nil {
		if data, err := json.Marshal(view); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleOrientationStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("orientation stream upgrade failed", logger.Err(err))
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxMessageSize)

	s.logger.Info("orientation producer connected", slog.String("remote", r.RemoteAddr))
	for {
		var reading orientation.Reading
		if err = conn.ReadJSON(&reading); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.feed.Publish(orientation.Event{Err: fmt.Errorf("malformed orientation reading: %w", err)})
				continue
			}
			s.logger.Info("orientation producer disconnected", slog.String("remote", r.RemoteAddr))
			return
		}
		s.feed.Push(reading)
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, marker projection.Marker) {
	detail, err := s.presenter.Detail(marker)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) writeState(w http.ResponseWriter, status int, err error) {
	state := s.controller.State()
	resp := stateResponse{State: state, Message: s.presenter.Message(state)}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write response", logger.Err(err))
	}
}

// statusFor maps acquisition errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, sensor.ErrInProgress), errors.Is(err, sensor.ErrNotGranted):
		return http.StatusConflict
	case errors.Is(err, sensor.ErrDisposed), errors.Is(err, sensor.ErrAbandoned):
		return http.StatusGone
	case errors.Is(err, sensor.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, sensor.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, sensor.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
