package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/fault"
)

// maxGoogleChars is the largest input the web endpoint accepts in one call.
const maxGoogleChars = 5000

// Google translates through the Google Translate web endpoint
// (translate_a/single, client=gtx) with source-language auto-detection.
type Google struct {
	endpoint string
	client   *http.Client
}

// NewGoogle creates a Google translator from config.
func NewGoogle(cfg config.TranslationConfig) *Google {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Google{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Translate converts text into target. Blank text is returned unchanged
// without contacting the endpoint.
func (g *Google) Translate(ctx context.Context, text, target string) (string, error) {
	skip, err := checkInput(text, maxGoogleChars)
	if err != nil || skip {
		return text, err
	}

	tl, err := ParseLanguage(target)
	if err != nil {
		return "", fault.New(fault.KindTranslation, err)
	}

	q := make(url.Values)
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", tl)
	q.Set("dt", "t")
	q.Set("ie", "UTF-8")
	q.Set("oe", "UTF-8")

	form := url.Values{"q": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?"+q.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fault.Newf(fault.KindTranslation, "creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fault.Newf(fault.KindTranslation, "translate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fault.Newf(fault.KindTranslation, "reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fault.Newf(fault.KindTranslation, "translate failed (status %d): %.200s", resp.StatusCode, body)
	}

	out, err := parseGTX(body)
	if err != nil {
		return "", fault.New(fault.KindTranslation, err)
	}

	slog.Debug("translation complete", "target", tl, "in_length", len(text), "out_length", len(out))
	return out, nil
}

// parseGTX extracts the translated text from a gtx response, which looks like
//
//	[[["Hola ","Hello ",null,null,10],["mundo","world",null,null,10]],null,"en",...]
//
// Sentences arrive as separate segments and are concatenated.
func parseGTX(body []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", fmt.Errorf("decoding translation: %w", err)
	}
	if len(top) == 0 {
		return "", fmt.Errorf("empty translation response")
	}

	var segments [][]any
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return "", fmt.Errorf("decoding translation segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("translation response has no text: %.200s", body)
	}
	return sb.String(), nil
}
