package middleware

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/go-reelscout/internal/domain"
)

// funcUnit adapts a function to ports.Unit.
type funcUnit struct {
	name string
	fn   func(ctx context.Context, s domain.State) (domain.State, error)
}

func (u funcUnit) Name() string { return u.name }
func (u funcUnit) Execute(ctx context.Context, s domain.State) (domain.State, error) {
	return u.fn(ctx, s)
}
func (u funcUnit) Validate() error { return nil }

type outcome struct {
	stage string
	err   error
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []outcome
}

func (r *recordingObserver) Start(ctx context.Context, stage string, _ domain.State) (context.Context, func(time.Duration, error)) {
	return ctx, func(_ time.Duration, err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.outcomes = append(r.outcomes, outcome{stage: stage, err: err})
	}
}

func TestStageGuard(t *testing.T) {
	boom := errors.New("boom")
	seed := domain.NewRunState(domain.RunContext{RunID: "run-1", Query: "kyoto", StartedAt: time.Now()})

	tests := []struct {
		name      string
		fn        func(ctx context.Context, s domain.State) (domain.State, error)
		wantErr   error
		wantPanic bool
		wantKey   bool
	}{
		{
			name: "success passes state through",
			fn: func(_ context.Context, s domain.State) (domain.State, error) {
				return domain.With(s, domain.KeyExpandedQueries, []string{"kyoto temples"}), nil
			},
			wantKey: true,
		},
		{
			name: "error is returned unchanged",
			fn: func(_ context.Context, s domain.State) (domain.State, error) {
				return s, boom
			},
			wantErr: boom,
		},
		{
			name: "panic becomes an error",
			fn: func(context.Context, domain.State) (domain.State, error) {
				var m map[string]int
				m["x"]++
				return domain.State{}, nil
			},
			wantErr:   ErrStagePanicked,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a guarded unit with a recording observer
			observer := &recordingObserver{}
			guard := NewStageGuard(funcUnit{name: "expand", fn: tt.fn}, observer)

			// When it executes
			out, err := guard.Execute(context.Background(), seed)

			// Then the outcome is returned and observed exactly once
			require.Len(t, observer.outcomes, 1)
			assert.Equal(t, "expand", observer.outcomes[0].stage)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, observer.outcomes[0].err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantPanic {
				var pe *PanicError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "expand", pe.Stage)
				assert.NotEmpty(t, pe.Stack)
				rc, ok := out.RunContext()
				require.True(t, ok)
				assert.Equal(t, "run-1", rc.RunID)
			}
			_, ok := domain.Get(out, domain.KeyExpandedQueries)
			assert.Equal(t, tt.wantKey, ok)
		})
	}
}

func TestStageGuard_NilObserver(t *testing.T) {
	guard := NewStageGuard(funcUnit{name: "rank", fn: func(_ context.Context, s domain.State) (domain.State, error) {
		return s, nil
	}}, nil)

	_, err := guard.Execute(context.Background(), domain.NewState())

	require.NoError(t, err)
	assert.Equal(t, "rank", guard.Name())
	assert.NoError(t, guard.Validate())
}

func TestNewStageGuard_RequiresUnit(t *testing.T) {
	assert.Panics(t, func() { NewStageGuard(nil, nil) })
}

func TestOTelStageObserver(t *testing.T) {
	// Given an observer wired to metrics and a buffered logger
	pm, _ := newTestMetrics(t)
	var buf bytes.Buffer
	observer := NewOTelStageObserver(noop.NewTracerProvider().Tracer("test"), pm, zerolog.New(&buf))
	seed := domain.NewRunState(domain.RunContext{RunID: "run-7", Query: "lisbon", StartedAt: time.Now()})

	// When one stage succeeds and another panics
	ok := NewStageGuard(funcUnit{name: "dedupe", fn: func(_ context.Context, s domain.State) (domain.State, error) {
		return s, nil
	}}, observer)
	bad := NewStageGuard(funcUnit{name: "judge", fn: func(context.Context, domain.State) (domain.State, error) {
		panic("judge exploded")
	}}, observer)
	_, err := ok.Execute(context.Background(), seed)
	require.NoError(t, err)
	_, err = bad.Execute(context.Background(), seed)
	require.Error(t, err)

	// Then both are counted by status and the failure is logged with the run id
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.stageTotal.WithLabelValues("dedupe", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.stageTotal.WithLabelValues("judge", "panic")))
	assert.Contains(t, buf.String(), `"run_id":"run-7"`)
	assert.Contains(t, buf.String(), `"stage":"judge"`)
	assert.Contains(t, buf.String(), "judge exploded")
}
