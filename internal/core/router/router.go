// Package router exposes map sessions over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
	"github.com/mohammed-shakir/wfs-clickmap/internal/logger"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapengine"
	"github.com/mohammed-shakir/wfs-clickmap/internal/session"
)

const maxBodyBytes = 16 << 10

// Sessions is the subset of session.Registry the handlers use.
type Sessions interface {
	Create() *session.Session
	Get(id string) (*session.Session, bool)
	Delete(id string) bool
}

type createResponse struct {
	ID    string          `json:"id"`
	State mapengine.State `json:"state"`
}

type viewRequest struct {
	Center     [2]float64 `json:"center"`
	Zoom       float64    `json:"zoom"`
	Resolution float64    `json:"resolution"`
}

// Mount registers the session API on r.
func Mount(r chi.Router, log *slog.Logger, reg Sessions) {
	h := &handlers{log: log, reg: reg}
	r.Post("/sessions", h.create)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.delete)
		r.Post("/click", h.click)
		r.Post("/view", h.view)
	})
}

type handlers struct {
	log *slog.Logger
	reg Sessions
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	s := h.reg.Create()
	h.log.InfoContext(logger.WithSession(r.Context(), s.ID), "session opened")
	writeJSON(w, http.StatusCreated, createResponse{ID: s.ID, State: s.Engine.Snapshot()})
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, context.Context, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.reg.Get(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return nil, nil, false
	}
	return s, logger.WithSession(r.Context(), id), true
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.reg.Delete(id) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	h.log.InfoContext(logger.WithSession(r.Context(), id), "session closed")
	w.WriteHeader(http.StatusNoContent)
}

// click runs one query cycle and answers with the resulting state. The cycle
// is not cancelled when the client goes away.
func (h *handlers) click(w http.ResponseWriter, r *http.Request) {
	s, ctx, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ev, err := ParseClick(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Engine.Click(context.WithoutCancel(ctx), ev); err != nil {
		if errors.Is(err, mapengine.ErrDetached) {
			http.Error(w, "session closed", http.StatusGone)
			return
		}
		h.log.ErrorContext(ctx, "click dispatch failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req viewRequest
	if err := decodeBody(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, v := range []float64{req.Center[0], req.Center[1], req.Zoom, req.Resolution} {
		if !finite(v) {
			http.Error(w, "view values must be finite", http.StatusBadRequest)
			return
		}
	}
	res := req.Resolution
	if res <= 0 {
		res = mapengine.ResolutionForZoom(req.Zoom)
	}
	s.Engine.SetView(mapengine.View{Center: req.Center, Zoom: req.Zoom, Resolution: res})
	w.WriteHeader(http.StatusNoContent)
}

// ParseClick decodes and validates a click body.
func ParseClick(body io.Reader) (model.ClickEvent, error) {
	var ev model.ClickEvent
	if err := decodeBody(body, &ev); err != nil {
		return model.ClickEvent{}, err
	}
	if !finite(ev.Coordinate[0]) || !finite(ev.Coordinate[1]) {
		return model.ClickEvent{}, errors.New("coordinate must be finite")
	}
	if !finite(ev.Resolution) || ev.Resolution < 0 {
		return model.ClickEvent{}, errors.New("resolution must be a non-negative number")
	}
	return ev, nil
}

func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
