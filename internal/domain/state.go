package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Pipeline state keys. Each stage reads its input key and writes its
// output key, so a State snapshot shows how far a run progressed.
var (
	// KeyRunID identifies one search invocation in logs and traces.
	KeyRunID = Key[string]{"run.id"}

	// KeyStartedAt is the reference time used for recency scoring.
	KeyStartedAt = Key[time.Time]{"run.started_at"}

	// KeyQuery is the trimmed user query.
	KeyQuery = Key[string]{"query"}

	// KeyExpandedQueries holds the expander's phrases, never empty once set.
	KeyExpandedQueries = Key[[]string]{"expanded_queries"}

	// KeyCandidates holds raw search hits, deduplicated after the dedupe stage.
	KeyCandidates = Key[[]SearchCandidate]{"candidates"}

	// KeyEnriched holds candidates with statistics and transcripts attached.
	KeyEnriched = Key[[]EnrichedCandidate]{"enriched"}

	// KeyJudged holds candidates with relevance judge scores.
	KeyJudged = Key[[]JudgedCandidate]{"judged"}

	// KeyResults holds the ranked, truncated output.
	KeyResults = Key[[]RankedResult]{"results"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// State is the immutable bag of pipeline data handed from stage to stage.
// It uses copy-on-write semantics so a stage can never mutate what an
// earlier stage produced.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	phrases, ok := Get(state, KeyExpandedQueries)
//	if !ok {
//	    // stage has not run
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way to add or update data in a State.
//
// Example:
//
//	next := With(state, KeyQuery, "lisbon food")
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithRaw is a method version of With that uses a string key and allows
// chaining. For type safety, use the generic With function instead.
func (s State) WithRaw(keyName string, value any) State {
	newData := maps.Clone(s.data)
	newData[keyName] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
//
// Example:
//
//	next := state.WithMultiple(map[string]any{
//	    KeyQuery.name:    "osaka",
//	    KeyRunID.name:    runID,
//	})
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice can be used to iterate over all stored values and
// is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// RunContext is the per-invocation metadata every stage can read.
type RunContext struct {
	RunID     string
	Query     string
	StartedAt time.Time
}

// NewRunState seeds a State for one search invocation.
func NewRunState(rc RunContext) State {
	return NewState().WithMultiple(map[string]any{
		KeyRunID.name:     rc.RunID,
		KeyQuery.name:     rc.Query,
		KeyStartedAt.name: rc.StartedAt,
	})
}

// RunContext extracts run metadata. It reports false when the State was not
// created by NewRunState.
func (s State) RunContext() (RunContext, bool) {
	runID, ok1 := Get(s, KeyRunID)
	query, ok2 := Get(s, KeyQuery)
	started, ok3 := Get(s, KeyStartedAt)
	if !ok1 || !ok2 || !ok3 {
		return RunContext{}, false
	}
	return RunContext{RunID: runID, Query: query, StartedAt: started}, true
}

// Require fetches a value that an earlier stage must have written. A
// missing key wraps ErrKeyNotFound; a value of another type wraps
// ErrTypeMismatch.
func Require[T any](s State, key Key[T]) (T, error) {
	var zero T
	raw, exists := s.data[key.name]
	if !exists {
		return zero, NewStateError(key.name, "get", ErrKeyNotFound)
	}
	v, ok := deepCopyValue(raw).(T)
	if !ok {
		return zero, NewStateError(key.name, "get", fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, raw, zero))
	}
	return v, nil
}

// Name returns the key's string form.
func (k Key[T]) Name() string { return k.name }
