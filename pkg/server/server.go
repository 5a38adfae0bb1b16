package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/events"
	"github.com/go-go-golems/shepherd/pkg/helpers"
	"github.com/go-go-golems/shepherd/pkg/inference/toolloop"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
	defaultKeepAlive    = 15 * time.Second
)

type Config struct {
	Address string
	// KeepAlive is the interval of SSE comment pings; 0 disables them.
	KeepAlive time.Duration
}

func DefaultConfig() Config {
	return Config{Address: ":8080", KeepAlive: defaultKeepAlive}
}

// ChatRequest is the body of POST /api/chat and the first websocket frame.
type ChatRequest struct {
	Messages           json.RawMessage `json:"messages"`
	CustomSystemPrompt string          `json:"customSystemPrompt,omitempty"`
}

type Server struct {
	cfg      Config
	loop     *toolloop.Loop
	registry tools.ToolRegistry
	executor tools.Executor
	mirrors  []events.EventSink
	app      *echo.Echo
}

type Option func(*Server)

// WithMirrorSinks adds sinks that receive a copy of every event of every
// run (watermill "chat" topic). Mirror failures are logged and never stop
// a run.
func WithMirrorSinks(sinks ...events.EventSink) Option {
	return func(s *Server) { s.mirrors = append(s.mirrors, sinks...) }
}

// New wires the HTTP routes. The loop carries the selected backend and
// the tools it advertises; the executor serves direct invocations.
func New(cfg Config, loop *toolloop.Loop, registry tools.ToolRegistry, executor tools.Executor, options ...Option) (*Server, error) {
	if loop == nil {
		return nil, errors.New("tool loop must not be nil")
	}
	if registry == nil || executor == nil {
		return nil, errors.New("tool registry and executor must not be nil")
	}
	if cfg.Address == "" {
		cfg.Address = DefaultConfig().Address
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Debug()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Int64("latency_ms", v.Latency.Milliseconds()).
				Msg("server: request")
			return nil
		},
	}))

	s := &Server{
		cfg:      cfg,
		loop:     loop,
		registry: registry,
		executor: executor,
		app:      e,
	}
	for _, o := range options {
		o(s)
	}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the routes, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully. Streaming
// runs in flight are cancelled through their request contexts.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("address", s.cfg.Address).Str("provider", s.loop.Provider()).Msg("server: listening")

	httpServer := &http.Server{
		Addr:        s.cfg.Address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "graceful shutdown failed")
		}
		log.Info().Msg("server: shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/healthz", s.handleHealth)
	s.app.POST("/api/chat", s.handleChat)
	s.app.GET("/api/chat/ws", s.handleChatWebsocket)
	s.app.GET("/api/tools", s.handleListTools)
	s.app.POST("/api/tools/:name/invoke", s.handleInvokeTool)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"provider": s.loop.Provider(),
		"tools":    len(s.loop.Tools()),
	})
}

func (s *Server) handleChat(c echo.Context) error {
	var body ChatRequest
	if err := decodeRequestBody(c, &body); err != nil {
		return err
	}
	conv, err := conversation.DecodeMessages(body.Messages)
	if err != nil {
		return badRequest(err.Error())
	}

	w, err := newSSEWriter(c.Response())
	if err != nil {
		return errors.Wrap(err, "server does not support streaming responses")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	ctx = s.runContext(ctx, w)

	pinged := make(chan struct{})
	go func() {
		defer close(pinged)
		keepAlive(ctx, w, s.cfg.KeepAlive)
	}()

	s.run(ctx, conv, body.CustomSystemPrompt)
	cancel()
	<-pinged
	// the response is already committed; errors have been sent as events
	return nil
}

// runContext attaches a fresh run id, also used as correlation id of the
// audit records, the client sink and the mirror sinks.
func (s *Server) runContext(ctx context.Context, client events.EventSink) context.Context {
	runID := uuid.NewString()
	ctx = events.WithRunID(ctx, runID)
	ctx = helpers.ContextWithCorrelationID(ctx, runID)
	sinks := []events.EventSink{client}
	for _, m := range s.mirrors {
		sinks = append(sinks, bestEffort(m))
	}
	return events.WithEventSinks(ctx, sinks...)
}

func (s *Server) run(ctx context.Context, conv conversation.Conversation, systemPrompt string) {
	runID := events.RunIDFromContext(ctx)
	_, err := s.loop.Run(ctx, conv, systemPrompt)
	switch {
	case err == nil:
		log.Debug().Str("run_id", runID).Msg("server: run finished")
	case errors.Is(err, context.Canceled):
		log.Debug().Str("run_id", runID).Msg("server: client went away")
	default:
		log.Warn().Err(err).Str("run_id", runID).Msg("server: run failed")
	}
}

func keepAlive(ctx context.Context, w *sseWriter, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.comment("keepalive"); err != nil {
				return
			}
		}
	}
}

func bestEffort(sink events.EventSink) events.EventSink {
	return events.SinkFunc(func(e events.Event) error {
		if err := sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("server: mirror sink failed")
		}
		return nil
	})
}

func (s *Server) handleListTools(c echo.Context) error {
	defs := s.loop.Tools()
	if defs == nil {
		defs = []tools.ToolDefinition{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tools": defs})
}

// handleInvokeTool runs one tool without the model, through the same
// executor (validation, masking, audit) the loop uses.
func (s *Server) handleInvokeTool(c echo.Context) error {
	name := c.Param("name")
	if !s.registry.HasTool(name) {
		return requestError{Status: http.StatusNotFound, Message: "unknown tool: " + name}
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)
	args, err := io.ReadAll(req.Body)
	if err != nil {
		return badRequest("could not read request body: " + err.Error())
	}
	if len(args) == 0 {
		args = []byte("{}")
	}
	if !json.Valid(args) {
		return badRequest("request body must be a JSON object")
	}

	payload := s.executor.Execute(req.Context(), conversation.ToolRequest{
		ID:        "direct_" + uuid.NewString(),
		Name:      name,
		Arguments: args,
	})
	return c.JSON(http.StatusOK, payload)
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer func() { _ = req.Body.Close() }()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid JSON payload: " + err.Error())
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

func badRequest(msg string) requestError {
	return requestError{Status: http.StatusBadRequest, Message: msg}
}

type errorBody struct {
	Error string `json:"error"`
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, errorBody{Error: reqErr.Message})
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, errorBody{Error: http.StatusText(he.Code)})
		return
	}

	log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server: unhandled error")
	_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
}
