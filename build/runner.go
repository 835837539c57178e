package build

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/progress"
)

// Request describes one build or clean.
type Request struct {
	ID            string
	Kind          Kind
	Configuration string
	Platform      string

	// Solution, when set, is built with a single tool invocation.
	Solution string

	// Projects are built independently, at most MaxParallel at a time, when Solution is empty.
	Projects []string
}

// Runner executes build requests.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// CommandFunc creates the command for one tool invocation.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// ExecRunner runs an external MSBuild-compatible tool, "dotnet" or "msbuild".
type ExecRunner struct {
	// Tool is the executable; a base name containing "msbuild" selects MSBuild switches
	Tool string

	// Args are appended to every invocation
	Args []string

	// MaxParallel bounds concurrent project builds; <= 0 means one at a time
	MaxParallel int

	Logger   observability.Logger
	Reporter progress.Reporter

	// Command defaults to exec.CommandContext
	Command CommandFunc
}

// NewExecRunner creates a runner for tool.
func NewExecRunner(tool string, args []string, maxParallel int, logger observability.Logger, reporter progress.Reporter) *ExecRunner {
	return &ExecRunner{
		Tool:        tool,
		Args:        args,
		MaxParallel: maxParallel,
		Logger:      logger,
		Reporter:    reporter,
		Command:     exec.CommandContext,
	}
}

// Run executes req. A build that ran and failed is a Result with Success
// false; the error return is reserved for failures to run the tool at all.
func (r *ExecRunner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	targets := req.Projects
	if req.Solution != "" {
		targets = []string{req.Solution}
	}
	if len(targets) == 0 {
		return NewResult(req.ID, req.Kind, true, nil, time.Since(start)), nil
	}

	type outcome struct {
		ok     bool
		errors []Error
	}
	outcomes := make([]outcome, len(targets))

	limit := r.MaxParallel
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, target := range targets {
		g.Go(func() error {
			ok, errs, err := r.invoke(gctx, req, target)
			if err != nil {
				return err
			}
			outcomes[i] = outcome{ok: ok, errors: errs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	success := true
	var all []Error
	for _, o := range outcomes {
		success = success && o.ok
		all = append(all, o.errors...)
	}
	for _, e := range all {
		if e.Severity == SeverityError {
			success = false
			break
		}
	}

	return NewResult(req.ID, req.Kind, success, all, time.Since(start)), nil
}

// invoke runs the tool once for target and reports whether it exited cleanly.
func (r *ExecRunner) invoke(ctx context.Context, req Request, target string) (bool, []Error, error) {
	args := r.arguments(req, target)
	command := r.Command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, r.Tool, args...)
	cmd.Dir = filepath.Dir(target)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return false, nil, err
	}

	r.logger().Debug("Running {Tool} {Arguments}", r.Tool, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return false, nil, fmt.Errorf("failed to start %s: %w", r.Tool, err)
	}

	matcher := NewMSBuildMatcher()
	var mu sync.Mutex
	var problems []Error
	scan := func(rd io.Reader) error {
		sc := bufio.NewScanner(rd)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			r.reporter().Report("%s", line)
			mu.Lock()
			if e, ok := matcher.Match(line); ok {
				if e.Project == "" {
					e.Project = target
				}
				problems = append(problems, e)
			}
			mu.Unlock()
		}
		return sc.Err()
	}

	var streams errgroup.Group
	streams.Go(func() error { return scan(stdout) })
	streams.Go(func() error { return scan(stderr) })
	scanErr := streams.Wait()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return false, nil, ctx.Err()
	}
	if scanErr != nil {
		return false, nil, fmt.Errorf("failed to read %s output: %w", r.Tool, scanErr)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return true, problems, nil
	case errors.As(waitErr, &exitErr):
		r.logger().Debug("{Tool} exited with {ExitCode} for {Target}", r.Tool, exitErr.ExitCode(), target)
		return false, problems, nil
	default:
		return false, nil, fmt.Errorf("failed to run %s: %w", r.Tool, waitErr)
	}
}

func (r *ExecRunner) arguments(req Request, target string) []string {
	var args []string
	if r.msbuildStyle() {
		msTarget := "Build"
		if req.Kind == KindClean {
			msTarget = "Clean"
		}
		args = append(args, "/nologo", "/t:"+msTarget)
		if req.Configuration != "" {
			args = append(args, "/p:Configuration="+req.Configuration)
		}
		if req.Platform != "" {
			args = append(args, "/p:Platform="+req.Platform)
		}
	} else {
		args = append(args, req.Kind.String(), "-nologo")
		if req.Configuration != "" {
			args = append(args, "-c", req.Configuration)
		}
		if req.Platform != "" {
			args = append(args, "-p:Platform="+req.Platform)
		}
	}
	args = append(args, r.Args...)
	return append(args, target)
}

func (r *ExecRunner) msbuildStyle() bool {
	base := strings.ToLower(filepath.Base(r.Tool))
	return strings.Contains(base, "msbuild") || strings.Contains(base, "xbuild")
}

func (r *ExecRunner) logger() observability.Logger {
	if r.Logger == nil {
		return observability.NewNullLogger()
	}
	return r.Logger
}

func (r *ExecRunner) reporter() progress.Reporter {
	if r.Reporter == nil {
		return progress.Discard
	}
	return r.Reporter
}
