// Package server exposes chart sessions over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/junkd0g/bubbleflow/internal/chart"
	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/generate"
	"github.com/junkd0g/bubbleflow/internal/session"
)

const (
	maxUploadBytes = 32 << 20
	writeWait      = 10 * time.Second
)

// Options tunes the server.
type Options struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// DefaultOptions keeps idle sessions for an hour.
func DefaultOptions() Options {
	return Options{SessionTTL: time.Hour, SweepInterval: time.Minute}
}

type Server struct {
	store    *session.Store
	gen      *generate.Generator
	logger   *zerolog.Logger
	opts     Options
	upgrader websocket.Upgrader

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(gen *generate.Generator, logger *zerolog.Logger, opts Options) *Server {
	return &Server{
		store:  session.NewStore(opts.SessionTTL),
		gen:    gen,
		logger: logger,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/sessions", s.handleCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSummary)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDelete)
	mux.HandleFunc("PUT /api/sessions/{id}/params", s.handleParams)
	mux.HandleFunc("POST /api/sessions/{id}/colors/auto", s.handleAutoColors)
	mux.HandleFunc("POST /api/sessions/{id}/colors/random", s.handleRandomColors)
	mux.HandleFunc("PUT /api/sessions/{id}/colors", s.handleSetColors)
	mux.HandleFunc("PUT /api/sessions/{id}/categories", s.handleCategories)
	mux.HandleFunc("GET /api/sessions/{id}/points/{category}", s.handleListPoints)
	mux.HandleFunc("PUT /api/sessions/{id}/points/{category}", s.handleSelectPoints)
	mux.HandleFunc("GET /api/sessions/{id}/static", s.handleStatic)
	mux.HandleFunc("GET /api/sessions/{id}/animation", s.handleAnimation)
	mux.HandleFunc("GET /api/sessions/{id}/stream", s.handleStream)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go s.store.Run(ctx, s.opts.SweepInterval, func(n int) {
		s.logger.Debug().Int("sessions", n).Msg("expired sessions removed")
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("failed to parse upload: %w", err))
		return
	}

	start, err := readUpload(r, "start")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	end, err := readUpload(r, "end")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	params := config.Default()
	if raw := r.FormValue("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("failed to parse params: %w", err))
			return
		}
	}

	sess, err := session.New(start, end, params)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	s.store.Put(sess)

	s.logger.Info().
		Str("session", sess.ID).
		Int("start_rows", start.Len()).
		Int("end_rows", end.Len()).
		Msg("session created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(sess.Summary())
}

func readUpload(r *http.Request, field string) (*dataset.Table, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %s file: %w", field, err)
	}
	defer file.Close()
	return readTable(file, header)
}

func readTable(file multipart.File, header *multipart.FileHeader) (*dataset.Table, error) {
	if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		return dataset.ReadXLSX(file, header.Filename)
	}
	return dataset.ReadCSV(file, header.Filename)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, sess.Summary())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	params := sess.Params()
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SetParams(params); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, sess.Summary())
}

func (s *Server) handleAutoColors(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.AutoAssignColors()
	writeJSON(w, sess.Colors())
}

func (s *Server) handleRandomColors(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.rngMu.Lock()
	sess.RandomizeColors(s.rng)
	s.rngMu.Unlock()
	writeJSON(w, sess.Colors())
}

func (s *Server) handleSetColors(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var colors map[string]string
	if err := json.NewDecoder(r.Body).Decode(&colors); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SetColors(colors); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, sess.Colors())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var categories []string
	if err := json.NewDecoder(r.Body).Decode(&categories); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SelectCategories(categories); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, sess.Summary())
}

type pointsResponse struct {
	Category string                `json:"category"`
	Options  []session.PointOption `json:"options"`
	Selected []string              `json:"selected"`
}

func (s *Server) writePoints(w http.ResponseWriter, sess *session.Session, category string) {
	options, err := sess.PointOptions(category)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	selected, err := sess.SelectedPoints(category)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, pointsResponse{Category: category, Options: options, Selected: selected})
}

func (s *Server) handleListPoints(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writePoints(w, sess, r.PathValue("category"))
}

func (s *Server) handleSelectPoints(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	category := r.PathValue("category")
	var labels []string
	if err := json.NewDecoder(r.Body).Decode(&labels); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SelectPoints(category, labels); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	s.writePoints(w, sess, category)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, generate.PNG, generate.StaticFormats, s.gen.Static)
}

func (s *Server) handleAnimation(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, generate.HTML, generate.AnimationFormats, s.gen.Animation)
}

type generateFunc func(context.Context, *session.Session, generate.Format, io.Writer) (*generate.Result, error)

func (s *Server) download(w http.ResponseWriter, r *http.Request, fallback generate.Format, allowed []generate.Format, fn generateFunc) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(fallback)
	}
	format, err := generate.ParseFormat(name, allowed)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer
	res, err := fn(r.Context(), sess, format, &buf)
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Str("session", sess.ID).Str("format", name).Msg("generate failed")
		} else {
			s.logger.Warn().Err(err).Str("session", sess.ID).Str("format", name).Msg("generate rejected")
		}
		writeErr(w, code, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	_, _ = w.Write(buf.Bytes())
}

type frameMessage struct {
	Frame int    `json:"frame"`
	Total int    `json:"total"`
	PNG   string `json:"png"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	_, err = s.gen.Frames(r.Context(), sess, func(frame, total int, data []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(frameMessage{
			Frame: frame,
			Total: total,
			PNG:   base64.StdEncoding.EncodeToString(data),
		})
	})

	code, reason := websocket.CloseNormalClosure, "done"
	if err != nil {
		s.logger.Error().Err(err).Str("session", sess.ID).Msg("frame stream failed")
		code, reason = websocket.CloseInternalServerErr, err.Error()
		if statusFor(err) == http.StatusBadRequest {
			code = websocket.ClosePolicyViolation
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, truncate(reason, 120)), time.Now().Add(writeWait))
}

// Close reasons must fit in a control frame and stay valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoCategories),
		errors.Is(err, session.ErrNoPoints),
		errors.Is(err, session.ErrUnknownCategory),
		errors.Is(err, session.ErrUnknownPoint),
		errors.Is(err, session.ErrMissingColumns),
		errors.Is(err, session.ErrRowMismatch),
		errors.Is(err, chart.ErrRowMismatch),
		errors.Is(err, dataset.ErrColumnNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
