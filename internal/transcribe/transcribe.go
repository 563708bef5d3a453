// Package transcribe converts recorded audio into text using a
// Whisper-compatible speech-to-text endpoint.
//
// Two flavors are supported:
//   - "openai": OpenAI-compatible API (Groq, OpenAI, faster-whisper, whisper.cpp server)
//   - "asr":    ahmetoner/whisper-asr-webservice (POST /asr with query params)
//
// The model is chosen once, when the Transcriber is loaded: the primary
// model is probed and the fallback model is used if the probe fails.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/fault"
)

// Transcriber sends audio files to a Whisper-compatible endpoint.
type Transcriber struct {
	backend  string
	endpoint string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

// Load creates a Transcriber and selects its model. The primary model is
// probed against the endpoint; if it cannot be reached or is unknown, the
// fallback model is selected instead.
func Load(ctx context.Context, cfg config.TranscriptionConfig) *Transcriber {
	backend := cfg.Backend
	if backend == "" {
		backend = "openai"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	t := &Transcriber{
		backend:  backend,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		client:   &http.Client{Timeout: timeout},
	}

	if backend != "openai" {
		// whisper-asr-webservice loads its model at container start; there is nothing to probe.
		slog.Info("transcriber ready", "backend", backend, "endpoint", t.endpoint)
		return t
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := t.probe(probeCtx, cfg.Model)
	switch {
	case err == nil:
		slog.Info("transcriber ready", "backend", backend, "model", t.model)
	case cfg.FallbackModel != "":
		slog.Warn("primary transcription model unavailable, using fallback",
			"model", cfg.Model, "fallback", cfg.FallbackModel, "error", err)
		t.model = cfg.FallbackModel
	default:
		slog.Warn("transcription model unavailable and no fallback configured",
			"model", cfg.Model, "error", err)
	}
	return t
}

// Model returns the model selected at load time.
func (t *Transcriber) Model() string { return t.model }

// Transcribe reads the audio file at audioPath and returns its transcript.
// Failures are reported as *fault.Error of kind fault.KindTranscription.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fault.Newf(fault.KindTranscription, "reading audio: %w", err)
	}
	if len(audio) == 0 {
		return "", fault.Newf(fault.KindTranscription, "audio file %s is empty", filepath.Base(audioPath))
	}

	var text string
	switch t.backend {
	case "asr":
		text, err = t.transcribeASR(ctx, audio, filepath.Base(audioPath))
	default:
		text, err = t.transcribeOpenAI(ctx, audio, filepath.Base(audioPath))
	}
	if err != nil {
		return "", fault.New(fault.KindTranscription, err)
	}
	return strings.TrimSpace(text), nil
}

// transcribeOpenAI handles OpenAI-compatible whisper endpoints.
func (t *Transcriber) transcribeOpenAI(ctx context.Context, audio []byte, filename string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if t.model != "" {
		_ = writer.WriteField("model", t.model)
	}
	if t.language != "" {
		_ = writer.WriteField("language", t.language)
	}
	_ = writer.WriteField("response_format", "json")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	return t.do(req)
}

// transcribeASR handles the ahmetoner/whisper-asr-webservice format.
// API: POST /asr?task=transcribe&language=en&output=json
// Body: multipart/form-data with field "audio_file"
func (t *Transcriber) transcribeASR(ctx context.Context, audio []byte, filename string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio_file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	writer.Close()

	q := make(url.Values)
	q.Set("task", "transcribe")
	q.Set("output", "json")
	q.Set("encode", "true")
	if t.language != "" {
		q.Set("language", t.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"?"+q.Encode(), body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return t.do(req)
}

func (t *Transcriber) do(req *http.Request) (string, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("transcription complete", "backend", t.backend, "model", t.model, "text_length", len(result.Text))
	return result.Text, nil
}

// probe checks that model is served by the endpoint via GET <base>/models/<model>.
func (t *Transcriber) probe(ctx context.Context, model string) error {
	if model == "" {
		return fmt.Errorf("no model configured")
	}
	base := strings.TrimSuffix(strings.TrimRight(t.endpoint, "/"), "/audio/transcriptions")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models/"+url.PathEscape(model), nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe failed (status %d)", resp.StatusCode)
	}
	return nil
}
