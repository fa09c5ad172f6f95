package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type loggedLLM struct {
	next   CoreLLM
	logger zerolog.Logger
}

// LoggingMiddleware logs each request's outcome. Successful calls log at
// debug level, failures at warn.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &loggedLLM{next: next, logger: logger.With().Str("component", "llm").Logger()}
	}
}

// DoRequest implements CoreLLM.
func (l *loggedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := l.next.DoRequest(ctx, prompt, opts)

	if err != nil {
		l.logger.Warn().
			Err(err).
			Str("model", l.next.GetModel()).
			Str("error_type", errorType(err).String()).
			Dur("elapsed", time.Since(start)).
			Msg("llm request failed")
		return response, tokensIn, tokensOut, err
	}

	l.logger.Debug().
		Str("model", l.next.GetModel()).
		Int("tokens_in", tokensIn).
		Int("tokens_out", tokensOut).
		Dur("elapsed", time.Since(start)).
		Msg("llm request completed")
	return response, tokensIn, tokensOut, nil
}

// GetModel returns the model name from the wrapped implementation.
func (l *loggedLLM) GetModel() string { return l.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (l *loggedLLM) SetModel(m string) { l.next.SetModel(m) }
