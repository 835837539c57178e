package solution

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/willibrandon/litedev/build"
	"github.com/willibrandon/litedev/collections"
	"github.com/willibrandon/litedev/observability"
)

// ErrBusy is returned when a build or clean is requested while another one is running.
var ErrBusy = errors.New("a build is already in progress")

// Started is published when a build or clean begins.
type Started struct {
	ID       string
	Kind     build.Kind
	Solution *Solution
}

// Builder runs builds and cleans of a solution in the background, one at a time.
type Builder struct {
	runner build.Runner
	logger observability.Logger
	busy   atomic.Bool

	started   collections.Event[Started]
	completed collections.Event[*build.Result]
}

// NewBuilder creates a builder that executes requests with runner.
func NewBuilder(runner build.Runner, logger observability.Logger) *Builder {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Builder{runner: runner, logger: logger}
}

// IsBusy reports whether a build or clean is in flight.
func (b *Builder) IsBusy() bool {
	return b.busy.Load()
}

// OnStarted registers h for build starts. It runs on the requesting goroutine.
func (b *Builder) OnStarted(h func(Started)) func() {
	return b.started.Subscribe(h)
}

// OnCompleted registers h for build completions. It runs on the build goroutine.
func (b *Builder) OnCompleted(h func(*build.Result)) func() {
	return b.completed.Subscribe(h)
}

// BuildAsync builds sol in the background and calls done with the result.
// It returns ErrBusy without side effects when another request is running.
func (b *Builder) BuildAsync(ctx context.Context, sol *Solution, done func(*build.Result, error)) error {
	return b.start(ctx, build.KindBuild, sol, done)
}

// CleanAsync cleans sol in the background and calls done with the result.
func (b *Builder) CleanAsync(ctx context.Context, sol *Solution, done func(*build.Result, error)) error {
	return b.start(ctx, build.KindClean, sol, done)
}

func (b *Builder) start(ctx context.Context, kind build.Kind, sol *Solution, done func(*build.Result, error)) error {
	if !b.busy.CompareAndSwap(false, true) {
		observability.BuildRejectedTotal.WithLabelValues(kind.String()).Inc()
		b.logger.Warn("{Kind} rejected: a build is already in progress", kind)
		return ErrBusy
	}

	req := build.Request{
		ID:            uuid.NewString(),
		Kind:          kind,
		Configuration: sol.Configuration(),
		Platform:      sol.Platform(),
		Solution:      sol.Path(),
	}
	b.started.Emit(Started{ID: req.ID, Kind: kind, Solution: sol})
	b.logger.Info("{Kind} {BuildId} started for {Solution} ({Configuration}|{Platform})",
		kind, req.ID, sol.Name(), req.Configuration, req.Platform)

	go b.run(ctx, req, done)
	return nil
}

func (b *Builder) run(ctx context.Context, req build.Request, done func(*build.Result, error)) {
	spanCtx, span := observability.StartBuildSpan(ctx, req.Kind.String(), req.Solution, req.ID, req.Configuration, req.Platform)
	start := time.Now()

	result, err := b.runner.Run(spanCtx, req)
	observability.EndSpanWithError(span, err)

	outcome := "failure"
	switch {
	case err != nil:
		outcome = "error"
		b.logger.Error("{Kind} {BuildId} could not run: {Error}", req.Kind, req.ID, err)
	case result.Success():
		outcome = "success"
	}
	observability.BuildsTotal.WithLabelValues(req.Kind.String(), outcome).Inc()
	observability.BuildDuration.WithLabelValues(req.Kind.String()).Observe(time.Since(start).Seconds())

	if result != nil {
		b.logger.Info("{Kind} {BuildId} completed with {ErrorCount} errors and {WarningCount} warnings",
			req.Kind, req.ID, result.Count(build.SeverityError), result.Count(build.SeverityWarning))
	}

	b.busy.Store(false)
	if result != nil {
		b.completed.Emit(result)
	}
	if done != nil {
		done(result, err)
	}
}
