// Package configfile loads YAML configuration files into caller-supplied
// structs and watches them for changes.
package configfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-reelscout/internal/ports"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader reads one YAML file in strict mode. An empty path means no file;
// Load then only runs the prepare hook.
type Loader struct {
	path     string
	prepare  func(any) error
	factory  func() any
	debounce time.Duration
	logger   zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPrepare runs fn after every decode, before the value is handed back.
// It is where defaults, environment overrides and validation belong.
func WithPrepare(fn func(any) error) Option {
	return func(l *Loader) { l.prepare = fn }
}

// WithFactory sets how Watch allocates the value each reload decodes into.
// Use it to start every reload from defaults; fn must return a pointer of
// the same type passed to Watch. Without it reloads start from the zero
// value.
func WithFactory(fn func() any) Option {
	return func(l *Loader) { l.factory = fn }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(l *Loader) { l.debounce = d }
}

// New creates a loader for path.
func New(path string, logger zerolog.Logger, opts ...Option) *Loader {
	l := &Loader{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "configfile").Logger(),
	}
	if path != "" {
		l.path = filepath.Clean(path)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the watched file, or "" when none is configured.
func (l *Loader) Path() string { return l.path }

// Load decodes the file into config, which must be a non-nil pointer.
// Unknown keys are rejected.
func (l *Loader) Load(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ports.NewConfigError(l.path, fmt.Errorf("config must be a non-nil pointer, got %T", config))
	}

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return ports.NewConfigError(l.path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
			}
			return ports.NewConfigError(l.path, fmt.Errorf("read: %w", err))
		}
		if err := decodeStrict(data, config); err != nil {
			return ports.NewConfigError(l.path, err)
		}
	}

	if l.prepare != nil {
		if err := l.prepare(config); err != nil {
			return ports.NewConfigError(l.path, err)
		}
	}
	return nil
}

func decodeStrict(data []byte, config any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// Watch reloads the file whenever it changes and passes a fresh value of
// config's type to callback. Invalid files are logged and skipped so the
// previous configuration stays in effect. The parent directory is watched
// so that editors replacing the file atomically are still observed.
func (l *Loader) Watch(ctx context.Context, config any, callback func(any)) (func(), error) {
	if l.path == "" {
		return nil, ports.NewConfigError("", fmt.Errorf("%w: no file to watch", ports.ErrConfigNotFound))
	}
	typ := reflect.TypeOf(config)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return nil, ports.NewConfigError(l.path, fmt.Errorf("config must be a pointer, got %T", config))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	reload := func() {
		var fresh any
		if l.factory != nil {
			fresh = l.factory()
		} else {
			fresh = reflect.New(typ.Elem()).Interface()
		}
		if err := l.Load(ctx, fresh); err != nil {
			l.logger.Warn().Err(err).Msg("config reload rejected, keeping previous config")
			return
		}
		l.logger.Info().Str("path", l.path).Msg("config reloaded")
		callback(fresh)
	}

	go func() {
		defer close(done)
		defer watcher.Close()

		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != l.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(l.debounce, func() {
					if ctx.Err() == nil {
						reload()
					}
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn().Err(err).Msg("config watch error")
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}
