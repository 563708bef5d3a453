// Package http implements the HTTP transport for civicbot.
//
// It exposes a JSON API for sessions and streams replies as Server-Sent
// Events, one event per revealed character. Clients that do not accept
// text/event-stream get the finished reply in a single JSON response.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/civicbot/internal/chat"
	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/transport"
)

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port         int
	allowOrigins []string
	maxAudio     int64

	mu     sync.Mutex
	server *http.Server
}

// New creates a new HTTP transport.
func New(cfg config.HTTPConfig) *Transport {
	maxMB := cfg.MaxAudioMB
	if maxMB <= 0 {
		maxMB = 25
	}
	return &Transport{
		port:         cfg.Port,
		allowOrigins: cfg.AllowOrigins,
		maxAudio:     int64(maxMB) << 20,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Listen starts the HTTP server. It blocks until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Handler builds the router for svc.
func (t *Transport) Handler(svc transport.Service) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(cors.New(t.corsConfig()))
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/v1/sessions/[^/]+/(messages|voice)$`})))

	h := &handlers{svc: svc, maxAudio: t.maxAudio}

	v1 := r.Group("/v1")
	{
		v1.GET("/variants", h.listVariants)
		v1.GET("/hazards", h.hazards)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.openSession)
			sessions.GET("/:id", h.getSession)
			sessions.PUT("/:id/variant", h.switchVariant)
			sessions.DELETE("/:id/history", h.clearSession)
			sessions.POST("/:id/messages", h.sendMessage)
			sessions.POST("/:id/voice", h.sendVoice)
		}
	}

	// Swagger UI for the registered OpenAPI docs.
	r.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	)))

	return r
}

func (t *Transport) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	origins := t.allowOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type handlers struct {
	svc      transport.Service
	maxAudio int64
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// openSessionRequest selects the persona of a new session.
type openSessionRequest struct {
	Variant string `json:"variant" example:"Hazard Alerts (INDIANA)"`
}

// switchVariantRequest selects a new persona for a session.
type switchVariantRequest struct {
	Variant string `json:"variant" binding:"required" example:"Emotional Support (RAY)"`
}

// messageRequest is a text message from the user.
type messageRequest struct {
	Text     string `json:"text" example:"Where is the nearest shelter?"`
	Language string `json:"language" example:"es"`
}

// replyResponse is the finished exchange.
type replyResponse struct {
	Session    chat.View         `json:"session"`
	Reply      string            `json:"reply"`
	Transcript string            `json:"transcript,omitempty"`
	Faults     []transport.Fault `json:"faults,omitempty"`
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch transport.Classify(err) {
	case transport.ClassInvalid:
		status = http.StatusBadRequest
	case transport.ClassNotFound:
		status = http.StatusNotFound
	case transport.ClassUpstream:
		status = http.StatusBadGateway
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: transport.ErrorMessage(err)})
}

// listVariants returns the persona catalog.
//
// @Summary     List chatbot variants
// @Tags        variants
// @Produce     json
// @Success     200  {array}  persona.Variant
// @Router      /v1/variants [get]
func (h *handlers) listVariants(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Variants())
}

// openSession creates a session.
//
// @Summary     Open a chat session
// @Description Starts a session with an empty history. An empty variant selects the hazard variant.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       request  body      openSessionRequest  false  "Variant selection"
// @Success     201      {object}  chat.View
// @Failure     400      {object}  errorResponse
// @Router      /v1/sessions [post]
func (h *handlers) openSession(c *gin.Context) {
	var req openSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
			return
		}
	}
	view, err := h.svc.OpenSession(req.Variant)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// getSession returns a session.
//
// @Summary     Get a chat session
// @Tags        sessions
// @Produce     json
// @Param       id   path      string  true  "Session ID"
// @Success     200  {object}  chat.View
// @Failure     404  {object}  errorResponse
// @Router      /v1/sessions/{id} [get]
func (h *handlers) getSession(c *gin.Context) {
	view, err := h.svc.Session(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// switchVariant changes the persona of a session and clears its history.
//
// @Summary     Switch the variant of a session
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Param       id       path      string                true  "Session ID"
// @Param       request  body      switchVariantRequest  true  "New variant"
// @Success     200      {object}  chat.View
// @Failure     400      {object}  errorResponse
// @Failure     404      {object}  errorResponse
// @Router      /v1/sessions/{id}/variant [put]
func (h *handlers) switchVariant(c *gin.Context) {
	var req switchVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	view, err := h.svc.SwitchVariant(c.Param("id"), req.Variant)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// clearSession empties the history of a session.
//
// @Summary     Clear the history of a session
// @Tags        sessions
// @Produce     json
// @Param       id   path      string  true  "Session ID"
// @Success     200  {object}  chat.View
// @Failure     404  {object}  errorResponse
// @Router      /v1/sessions/{id}/history [delete]
func (h *handlers) clearSession(c *gin.Context) {
	view, err := h.svc.ClearSession(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// sendMessage sends a text message and returns or streams the reply.
//
// @Summary     Send a text message
// @Description With "Accept: text/event-stream" the reply is streamed as "snapshot" events, one per
// @Description revealed character, followed by a single "done" event. Otherwise the finished reply is returned.
// @Tags        messages
// @Accept      json
// @Produce     json
// @Produce     text/event-stream
// @Param       id       path      string          true  "Session ID"
// @Param       request  body      messageRequest  true  "Message"
// @Success     200      {object}  replyResponse
// @Failure     400      {object}  errorResponse
// @Failure     404      {object}  errorResponse
// @Router      /v1/sessions/{id}/messages [post]
func (h *handlers) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	ex, err := h.svc.Say(c.Request.Context(), c.Param("id"), req.Text, req.Language)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.respond(c, ex)
}

// sendVoice transcribes a recording and returns or streams the reply.
//
// @Summary     Send a voice message
// @Description The request body is the raw recording. It is transcribed and answered like a text message.
// @Tags        messages
// @Accept      audio/wav
// @Accept      audio/ogg
// @Accept      audio/mpeg
// @Accept      audio/webm
// @Produce     json
// @Produce     text/event-stream
// @Param       id        path      string  true   "Session ID"
// @Param       language  query     string  false  "Reply language (default en)"
// @Success     200       {object}  replyResponse
// @Failure     400       {object}  errorResponse
// @Failure     404       {object}  errorResponse
// @Failure     413       {object}  errorResponse
// @Router      /v1/sessions/{id}/voice [post]
func (h *handlers) sendVoice(c *gin.Context) {
	path, err := h.saveAudio(c)
	if err != nil {
		return
	}
	defer os.Remove(path)

	ex, err := h.svc.Speak(c.Request.Context(), c.Param("id"), path, c.Query("language"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.respond(c, ex)
}

// saveAudio writes the request body to a temporary file. On failure it has
// already written the error response.
func (h *handlers) saveAudio(c *gin.Context) (string, error) {
	f, err := os.CreateTemp("", "civicbot-voice-*"+audioExt(c.ContentType()))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "creating temp file: " + err.Error()})
		return "", err
	}
	defer f.Close()

	n, err := io.Copy(f, http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAudio))
	if err == nil && n == 0 {
		err = errors.New("empty audio body")
	}
	if err != nil {
		os.Remove(f.Name())
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: "reading audio: " + err.Error()})
		return "", err
	}
	return f.Name(), nil
}

func audioExt(contentType string) string {
	switch contentType {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/webm":
		return ".webm"
	case "audio/flac":
		return ".flac"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	default:
		return ".wav"
	}
}

// hazards returns the current hazard snapshot.
//
// @Summary     Current hazard alerts and disaster declarations
// @Tags        hazards
// @Produce     json
// @Success     200  {object}  chat.HazardReport
// @Failure     502  {object}  errorResponse
// @Router      /v1/hazards [get]
func (h *handlers) hazards(c *gin.Context) {
	report, err := h.svc.Hazards(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) respond(c *gin.Context, ex *chat.Exchange) {
	if wantsEventStream(c.GetHeader("Accept")) {
		h.stream(c, ex)
		return
	}
	ex.Drain()
	c.JSON(http.StatusOK, h.finalResponse(ex))
}

// stream writes one "snapshot" event per revealed character and a final
// "done" event. A client that disconnects leaves the turn partially revealed.
func (h *handlers) stream(c *gin.Context, ex *chat.Exchange) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for snap := range ex.All() {
		if ctx.Err() != nil {
			slog.Info("sse client went away", "session_id", ex.SessionID, "remaining", ex.Remaining())
			return
		}
		writeSSE(c.Writer, "snapshot", snap)
		c.Writer.Flush()
	}
	writeSSE(c.Writer, "done", h.finalResponse(ex))
	c.Writer.Flush()
}

func (h *handlers) finalResponse(ex *chat.Exchange) replyResponse {
	resp := replyResponse{
		Reply:      ex.Reply().Text,
		Transcript: ex.Transcript,
		Faults:     transport.Faults(ex),
	}
	if view, err := h.svc.Session(ex.SessionID); err == nil {
		resp.Session = view
	} else {
		// Evicted mid-reply; report what the stream saw.
		resp.Session = chat.View{ID: ex.SessionID, History: ex.Snapshot().History}
	}
	return resp
}

func wantsEventStream(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(mt), "text/event-stream") {
			return true
		}
	}
	return false
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
