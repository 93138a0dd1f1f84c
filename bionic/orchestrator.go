package bionic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/2005czq/lunettes/compass"
	"github.com/2005czq/lunettes/domain"
	"github.com/2005czq/lunettes/stylesheet"
)

// Builder produces the stylesheet for a settings snapshot.
type Builder interface {
	Build(ctx context.Context, s domain.Settings) string
}

// BuilderFunc adapts a function to a Builder.
type BuilderFunc func(ctx context.Context, s domain.Settings) string

// Build implements Builder.
func (f BuilderFunc) Build(ctx context.Context, s domain.Settings) string {
	return f(ctx, s)
}

// StylesheetBuilder builds stylesheets with fonts resolved by resolver.
func StylesheetBuilder(resolver stylesheet.Resolver) Builder {
	return BuilderFunc(func(ctx context.Context, s domain.Settings) string {
		return stylesheet.Build(ctx, s, resolver)
	})
}

// Orchestrator applies settings snapshots to a Document.
type Orchestrator struct {
	doc     Document
	source  domain.SettingsSource
	builder Builder
	logger  *slog.Logger

	token atomic.Uint64

	mu      sync.Mutex
	style   Style
	stopped bool
	pending sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for injection failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator for doc.
func New(doc Document, source domain.SettingsSource, builder Builder, options ...Option) *Orchestrator {
	o := &Orchestrator{
		doc:     doc,
		source:  source,
		builder: builder,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// Apply runs one trigger for s and returns once it completed or was
// superseded. A superseded trigger leaves the document untouched.
func (o *Orchestrator) Apply(ctx context.Context, s domain.Settings) error {
	return o.apply(ctx, o.token.Add(1), s)
}

// Active reports whether a style is currently injected.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.style != nil
}

func (o *Orchestrator) apply(ctx context.Context, token uint64, s domain.Settings) error {
	css := ""
	if !compass.IsSiteFiltered(s, o.doc.URL()) {
		css = o.builder.Build(ctx, s)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if token != o.token.Load() {
		return nil
	}

	if err := o.removeLocked(); err != nil {
		return err
	}
	if strings.TrimSpace(css) == "" {
		return nil
	}

	style, err := o.doc.InjectStyle(css)
	if err != nil {
		return fmt.Errorf("injecting style : %w", err)
	}
	o.style = style
	return nil
}

func (o *Orchestrator) removeLocked() error {
	if o.style == nil {
		return nil
	}
	style := o.style
	o.style = nil
	if err := style.Remove(); err != nil {
		return fmt.Errorf("removing style : %w", err)
	}
	return nil
}

// Start applies the current settings and every later change until stop is
// called. Each change is applied in its own goroutine. stop unsubscribes,
// waits for pending applies and removes the style.
func (o *Orchestrator) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	o.launch(ctx, o.source.Get())
	unsubscribe := o.source.OnChange(func(s domain.Settings) {
		o.launch(ctx, s)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			o.stopped = true
			o.mu.Unlock()

			unsubscribe()
			o.token.Add(1)
			cancel()
			o.pending.Wait()

			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.removeLocked(); err != nil {
				o.logger.Warn("removing style on stop", "error", err)
			}
		})
	}
}

// launch numbers the trigger on arrival and runs it in the background.
func (o *Orchestrator) launch(ctx context.Context, s domain.Settings) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.pending.Add(1)
	token := o.token.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.pending.Done()
		if err := o.apply(ctx, token, s); err != nil {
			o.logger.Warn("applying bionic style", "error", err)
		}
	}()
}
