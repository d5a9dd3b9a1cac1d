// Package server exposes the pipeline and the gate over HTTP:
//
//	POST /obfuscate   {code, options} -> {ok, output} | {ok: false, error}
//	GET  /key?id=...  -> {g, exp}; with &exp=... the token for that expiry
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"luaobf/internal/gate"
	"luaobf/internal/obfuscate"
	"luaobf/internal/options"
)

// DefaultMaxBody bounds request bodies.
const DefaultMaxBody = 4 << 20

type Config struct {
	Logger *logrus.Logger
	Issuer gate.Issuer
	// Defaults are merged under the options of every request.
	Defaults options.Input
	MaxBody  int64
}

type Server struct {
	cfg Config
	log *logrus.Logger
	mux *http.ServeMux
}

type obfuscateRequest struct {
	Code    *string       `json:"code"`
	Options options.Input `json:"options"`
}

type obfuscateResponse struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	s := &Server{cfg: cfg, log: cfg.Logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /obfuscate", s.handleObfuscate)
	s.mux.HandleFunc("GET /key", s.handleKey)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log.WithFields(logrus.Fields{
		"method":  r.Method,
		"path":    r.URL.Path,
		"status":  rec.status,
		"elapsed": time.Since(start).String(),
	}).Info("request")
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) handleObfuscate(w http.ResponseWriter, r *http.Request) {
	var req obfuscateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, obfuscateResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if req.Code == nil {
		writeJSON(w, http.StatusBadRequest, obfuscateResponse{Error: "missing code"})
		return
	}
	opts, err := s.cfg.Defaults.Merge(req.Options).Resolve()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, obfuscateResponse{Error: err.Error()})
		return
	}

	res, err := obfuscate.Obfuscate(r.Context(), *req.Code, opts, obfuscate.Config{
		Logger: slog.New(slog.NewTextHandler(s.log.Out, &slog.HandlerOptions{Level: slog.LevelWarn})),
		Gate:   s.cfg.Issuer,
	})
	switch {
	case errors.Is(err, obfuscate.ErrNotText), errors.Is(err, options.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, obfuscateResponse{Error: err.Error()})
		return
	case err != nil:
		s.log.WithError(err).Error("obfuscate failed")
		writeJSON(w, http.StatusInternalServerError, obfuscateResponse{Error: err.Error()})
		return
	}
	s.log.WithFields(logrus.Fields{
		"build":    res.BuildID,
		"literals": len(res.Literals),
		"bytes":    len(res.Output),
		"gated":    res.Inner.Gated,
	}).Debug("obfuscated")
	writeJSON(w, http.StatusOK, obfuscateResponse{OK: true, Output: res.Output})
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	if raw := q.Get("exp"); raw != "" {
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("bad exp %q", raw)})
			return
		}
		tok, err := s.cfg.Issuer.Redeem(id, exp)
		if errors.Is(err, gate.ErrExpired) {
			writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, tok)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Issuer.Issue(id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
