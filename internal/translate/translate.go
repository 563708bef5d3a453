// Package translate defines the translator used to move user text into the
// pivot language and replies back into the user's language.
package translate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/nadzzz/civicbot/internal/fault"
)

// Translator converts text from an auto-detected language into target.
//
// Failures are reported as *fault.Error of kind fault.KindTranslation.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Nop returns text unchanged. It backs the "none" translation backend.
type Nop struct{}

// Translate returns text as-is.
func (Nop) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// Func adapts a plain function to the Translator interface.
type Func func(ctx context.Context, text, target string) (string, error)

// Translate calls f.
func (f Func) Translate(ctx context.Context, text, target string) (string, error) {
	return f(ctx, text, target)
}

// ParseLanguage validates a user-supplied language code and returns its
// canonical BCP 47 form ("zh-cn" becomes "zh-CN"). Empty input yields "en".
func ParseLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "en", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", code, err)
	}
	if tag == language.Und {
		return "", fmt.Errorf("invalid language %q", code)
	}
	return tag.String(), nil
}

// checkInput applies the provider limits shared by all backends.
// It reports whether the call can be skipped because text is blank.
func checkInput(text string, maxChars int) (skip bool, err error) {
	if strings.TrimSpace(text) == "" {
		return true, nil
	}
	if n := len([]rune(text)); maxChars > 0 && n > maxChars {
		return false, fault.Newf(fault.KindTranslation, "text length %d exceeds the %d character limit", n, maxChars)
	}
	return false, nil
}
