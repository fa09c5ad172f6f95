// Package llmjson recovers JSON values embedded in free-form model output.
//
// Model replies are untrusted: they may be valid JSON, JSON wrapped in a
// markdown fence, or JSON buried in prose. Extract runs an ordered list of
// strategies and offers each candidate span to a caller-supplied decoder, so
// a span is accepted only when it has the shape the caller expects.
package llmjson

import (
	"errors"
	"strings"
)

// Kind tags a Result.
type Kind int

const (
	// Malformed means no strategy produced a span the decoder accepted.
	Malformed Kind = iota
	// Ok means Value holds a decoded value.
	Ok
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == Ok {
		return "ok"
	}
	return "malformed"
}

// Strategy names the step that produced a candidate span.
type Strategy string

const (
	StrategyDirect         Strategy = "direct"
	StrategyFenceStrip     Strategy = "fence_strip"
	StrategyBalancedObject Strategy = "balanced_object"
	StrategyBalancedArray  Strategy = "balanced_array"
)

// ScanOrder selects how the balanced scan picks between objects and arrays.
type ScanOrder int

const (
	// FirstOpening scans from whichever of '{' or '[' appears first.
	FirstOpening ScanOrder = iota
	// ObjectsFirst exhausts '{' spans before trying '[' spans.
	ObjectsFirst
)

// maxScanAttempts bounds how many balanced spans of one kind are tried.
const maxScanAttempts = 8

// ErrNoJSON is the reason reported when the text holds no candidate span.
var ErrNoJSON = errors.New("no JSON value found")

// Decoder validates and converts one candidate span. It must return an error
// when the span is not valid JSON or does not have the expected shape.
type Decoder[T any] func(raw []byte) (T, error)

// Result is the outcome of Extract: either Ok with Value and the Strategy
// that produced it, or Malformed with Reason describing the last failure.
type Result[T any] struct {
	Kind     Kind
	Value    T
	Strategy Strategy
	Reason   error
}

// IsOk reports whether the result carries a value.
func (r Result[T]) IsOk() bool { return r.Kind == Ok }

// Extract tries, in order: the whole text, the text with markdown fences
// stripped, then balanced {...} and [...] spans found by scanning.
func Extract[T any](text string, decode Decoder[T], order ScanOrder) Result[T] {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result[T]{Kind: Malformed, Reason: ErrNoJSON}
	}

	var lastErr error
	try := func(s string, strategy Strategy) (Result[T], bool) {
		v, err := decode([]byte(s))
		if err != nil {
			lastErr = err
			return Result[T]{}, false
		}
		return Result[T]{Kind: Ok, Value: v, Strategy: strategy}, true
	}

	if r, ok := try(text, StrategyDirect); ok {
		return r
	}

	if stripped := StripFences(text); stripped != text && stripped != "" {
		if r, ok := try(stripped, StrategyFenceStrip); ok {
			return r
		}
	}

	for _, open := range scanSequence(text, order) {
		strategy := StrategyBalancedObject
		if open == '[' {
			strategy = StrategyBalancedArray
		}
		from := 0
		for range maxScanAttempts {
			start, end, found := BalancedSpan(text, open, from)
			if !found {
				break
			}
			if r, ok := try(text[start:end], strategy); ok {
				return r
			}
			from = start + 1
		}
	}

	if lastErr == nil {
		lastErr = ErrNoJSON
	}
	return Result[T]{Kind: Malformed, Reason: lastErr}
}

func scanSequence(text string, order ScanOrder) []byte {
	if order == ObjectsFirst {
		return []byte{'{', '['}
	}
	obj, arr := strings.IndexByte(text, '{'), strings.IndexByte(text, '[')
	if arr >= 0 && (obj < 0 || arr < obj) {
		return []byte{'[', '{'}
	}
	return []byte{'{', '['}
}

// StripFences removes a surrounding markdown code fence and its language
// tag. Text without a fence is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		// Anything between the fence and the newline is a language tag.
		if tag := strings.TrimSpace(body[:nl]); !strings.ContainsAny(tag, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// BalancedSpan finds the first span at or after from that opens with open
// ('{' or '[') and closes at the matching bracket. Brackets inside string
// literals and escaped quotes are ignored. It returns the half-open byte
// range [start, end).
func BalancedSpan(text string, open byte, from int) (start, end int, ok bool) {
	var closeCh byte
	switch open {
	case '{':
		closeCh = '}'
	case '[':
		closeCh = ']'
	default:
		return 0, 0, false
	}
	if from < 0 || from >= len(text) {
		return 0, 0, false
	}

	idx := strings.IndexByte(text[from:], open)
	if idx == -1 {
		return 0, 0, false
	}
	start = from + idx

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}
	return 0, 0, false
}
