package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errSimulated = errors.New("simulated failure")

// fakeCore is a scripted CoreLLM. Errors are consumed in order; once the
// script is exhausted every call succeeds.
type fakeCore struct {
	mu sync.Mutex

	response  string
	tokensIn  int
	tokensOut int
	model     string
	delay     time.Duration
	errs      []error

	calls    int
	lastOpts map[string]any
	deadline []bool
}

func newFakeCore(errs ...error) *fakeCore {
	return &fakeCore{
		response:  "ok",
		tokensIn:  10,
		tokensOut: 20,
		model:     "fake-model",
		errs:      errs,
	}
}

func (f *fakeCore) DoRequest(ctx context.Context, _ string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	_, hasDeadline := ctx.Deadline()
	f.deadline = append(f.deadline, hasDeadline)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}
	if err != nil {
		return "", 0, 0, err
	}
	return f.response, f.tokensIn, f.tokensOut, nil
}

func (f *fakeCore) GetModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeCore) SetModel(m string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = m
}

func (f *fakeCore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingCollector captures metric writes keyed by name.
type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]int
	labels     map[string][]map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters:   map[string]float64{},
		histograms: map[string]int{},
		labels:     map[string][]map[string]string{},
	}
}

func (r *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {}

func (r *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric] += value
	r.labels[metric] = append(r.labels[metric], labels)
}

func (r *recordingCollector) RecordGauge(string, float64, map[string]string) {}

func (r *recordingCollector) RecordHistogram(metric string, _ float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[metric]++
	r.labels[metric] = append(r.labels[metric], labels)
}
