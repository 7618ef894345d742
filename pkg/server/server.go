// Package server exposes the assistant over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/akande-ai/akande/pkg/assistant"
	"github.com/akande-ai/akande/pkg/budget"
	"github.com/akande-ai/akande/pkg/config"
	"github.com/akande-ai/akande/pkg/gateway"
	"github.com/akande-ai/akande/pkg/models"
	"github.com/akande-ai/akande/pkg/speech"
)

// Response headers.
const (
	HeaderCache   = "X-Akande-Cache"
	HeaderSession = "X-Akande-Session"
)

// maxAudioBytes matches the upload limit of the transcription API.
const maxAudioBytes = 25 << 20

// questionBodyLimit caps JSON question bodies.
const questionBodyLimit = "64K"

// Asker answers questions. *assistant.Assistant satisfies it.
type Asker interface {
	AskInSession(ctx context.Context, sessionID, raw string) (assistant.Answer, error)
}

// CacheStatter reports cache statistics.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// SessionResolver maps a request to a session. history.SQLite satisfies it.
type SessionResolver interface {
	ResolveSession(ctx context.Context, explicitID string, gap time.Duration) (string, error)
}

// Server is the Akande HTTP front end.
type Server struct {
	cfg         *config.Config
	asker       Asker
	cache       CacheStatter
	sessions    SessionResolver
	transcriber speech.Transcriber
	logger      *log.Logger
	echo        *echo.Echo
}

// Option configures a Server.
type Option func(*Server)

// WithCache enables GET /api/cache/stats.
func WithCache(c CacheStatter) Option { return func(s *Server) { s.cache = c } }

// WithSessions groups requests into sessions.
func WithSessions(r SessionResolver) Option { return func(s *Server) { s.sessions = r } }

// WithTranscriber enables POST /api/audio-question.
func WithTranscriber(t speech.Transcriber) Option { return func(s *Server) { s.transcriber = t } }

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, asker Asker, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		asker:  asker,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.POST("/api/question", s.handleQuestion, middleware.BodyLimit(questionBodyLimit))
	e.POST("/api/audio-question", s.handleAudioQuestion, middleware.BodyLimit("25M"))
	e.GET("/api/cache/stats", s.handleCacheStats)
	if cfg.PublicDir != "" {
		e.Static("/", cfg.PublicDir)
	}

	s.echo = e
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("akande listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuestion(c echo.Context) error {
	var req models.QuestionRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return s.answer(c, req.Question)
}

func (s *Server) handleAudioQuestion(c echo.Context) error {
	if s.transcriber == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "speech transcription is not configured")
	}
	req := c.Request()
	audio, err := io.ReadAll(io.LimitReader(req.Body, maxAudioBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read audio body").SetInternal(err)
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty audio body")
	}
	if len(audio) > maxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio body too large")
	}

	text, err := s.transcriber.Transcribe(req.Context(), bytes.NewReader(audio), audioFilename(req))
	if err != nil {
		if errors.Is(err, speech.ErrNoSpeech) {
			return err
		}
		return echo.NewHTTPError(http.StatusBadGateway, "transcription failed").SetInternal(err)
	}
	if strings.TrimSpace(text) == "" {
		return speech.ErrNoSpeech
	}
	s.logger.Info("transcribed question", "question", text)
	return s.answer(c, text)
}

func (s *Server) answer(c echo.Context, question string) error {
	ctx := c.Request().Context()
	sessionID := s.resolveSession(c)

	ans, err := s.asker.AskInSession(ctx, sessionID, question)
	if err != nil {
		return err
	}

	h := c.Response().Header()
	if ans.Cached() {
		h.Set(HeaderCache, "hit")
	} else {
		h.Set(HeaderCache, "miss")
	}
	if sessionID != "" {
		h.Set(HeaderSession, sessionID)
	}
	return c.JSON(http.StatusOK, models.QuestionResponse{
		Response: ans.Text,
		Question: ans.Question,
		Key:      ans.Key,
		Cached:   ans.Cached(),
	})
}

type statsResponse struct {
	models.CacheStats
	HitRate float64 `json:"hit_rate"`
}

func (s *Server) handleCacheStats(c echo.Context) error {
	if s.cache == nil {
		return echo.NewHTTPError(http.StatusNotFound, "cache is not configured")
	}
	stats, err := s.cache.Stats(c.Request().Context())
	if err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}
	return c.JSON(http.StatusOK, statsResponse{CacheStats: stats, HitRate: stats.HitRate()})
}

func (s *Server) resolveSession(c echo.Context) string {
	explicit := c.Request().Header.Get(HeaderSession)
	if s.sessions == nil {
		return explicit
	}
	sid, err := s.sessions.ResolveSession(c.Request().Context(), explicit, s.cfg.Session.GapTimeout)
	if err != nil {
		s.logger.Warn("session resolve failed", "err", err)
		return explicit
	}
	return sid
}

// audioFilename picks a filename whose extension tells the transcriber the
// audio format.
func audioFilename(r *http.Request) string {
	if name := r.URL.Query().Get("filename"); name != "" {
		return filepath.Base(name)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(echo.HeaderContentType))
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "audio.wav"
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "audio.m4a"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/flac", "audio/x-flac":
		return "audio.flac"
	default:
		return "audio.webm"
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, message := classify(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", code, "err", err)
	}
	if err := c.JSON(code, errorBody{Error: errorDetail{Message: message, Type: "akande_error", Code: code}}); err != nil {
		s.logger.Error("write error response", "err", err)
	}
}

// classify maps an error to an HTTP status and a client-facing message.
func classify(err error) (int, string) {
	var he *echo.HTTPError
	var gerr *gateway.Error
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, assistant.ErrEmptyQuestion):
		return http.StatusBadRequest, "question is required"
	case errors.Is(err, budget.ErrBudgetExceeded):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, speech.ErrNoSpeech):
		return http.StatusUnprocessableEntity, "audio could not be understood"
	case errors.As(err, &gerr):
		return http.StatusBadGateway, "provider request failed: " + gerr.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
