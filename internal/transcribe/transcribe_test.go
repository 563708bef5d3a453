package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/fault"
)

func writeAudio(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

// whisperServer fakes an OpenAI-compatible whisper API serving the given models.
func whisperServer(t *testing.T, models map[string]bool, gotModel chan<- string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !models[r.PathValue("id")] {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":"` + r.PathValue("id") + `"}`))
	})
	mux.HandleFunc("POST /v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF", string(data))
		assert.Equal(t, "clip.wav", hdr.Filename)
		gotModel <- r.FormValue("model")
		_, _ = w.Write([]byte(`{"text":"  is there a tornado warning  "}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoad_PrimaryModel(t *testing.T) {
	got := make(chan string, 1)
	srv := whisperServer(t, map[string]bool{"big": true, "small": true}, got)

	tr := Load(context.Background(), config.TranscriptionConfig{
		Endpoint: srv.URL + "/v1/audio/transcriptions", APIKey: "key",
		Model: "big", FallbackModel: "small",
	})
	assert.Equal(t, "big", tr.Model())

	text, err := tr.Transcribe(context.Background(), writeAudio(t, "RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "is there a tornado warning", text)
	assert.Equal(t, "big", <-got)
}

func TestLoad_FallbackModel(t *testing.T) {
	got := make(chan string, 1)
	srv := whisperServer(t, map[string]bool{"small": true}, got)

	tr := Load(context.Background(), config.TranscriptionConfig{
		Endpoint: srv.URL + "/v1/audio/transcriptions", APIKey: "key",
		Model: "big", FallbackModel: "small",
	})
	assert.Equal(t, "small", tr.Model())

	_, err := tr.Transcribe(context.Background(), writeAudio(t, "RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "small", <-got)
}

func TestLoad_NoFallbackKeepsPrimary(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	tr := Load(context.Background(), config.TranscriptionConfig{
		Endpoint: srv.URL + "/v1/audio/transcriptions", Model: "big",
	})
	assert.Equal(t, "big", tr.Model())
}

func TestTranscribe_ASR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/asr", r.URL.Path)
		assert.Equal(t, "transcribe", r.URL.Query().Get("task"))
		assert.Equal(t, "es", r.URL.Query().Get("language"))
		_, _, err := r.FormFile("audio_file")
		assert.NoError(t, err)
		_, _ = w.Write([]byte(`{"text":"hola","language":"es"}`))
	}))
	t.Cleanup(srv.Close)

	tr := Load(context.Background(), config.TranscriptionConfig{
		Backend: "asr", Endpoint: srv.URL + "/asr", Language: "es",
	})
	text, err := tr.Transcribe(context.Background(), writeAudio(t, "OggS"))
	require.NoError(t, err)
	assert.Equal(t, "hola", text)
}

func TestTranscribe_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	tr := Load(context.Background(), config.TranscriptionConfig{Backend: "asr", Endpoint: srv.URL})

	tests := []struct {
		name    string
		path    string
		errPart string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.wav"), "reading audio"},
		{"empty file", writeAudio(t, ""), "is empty"},
		{"upstream status", writeAudio(t, "RIFF"), "status 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Transcribe(context.Background(), tt.path)
			require.Error(t, err)
			assert.Equal(t, fault.KindTranscription, fault.KindOf(err))
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}
