package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the tracer name for litedev operations
	TracerName = "github.com/willibrandon/litedev"
)

// Common attribute keys
const (
	AttrProjectPath   = attribute.Key("litedev.project.path")
	AttrSolutionPath  = attribute.Key("litedev.solution.path")
	AttrConfiguration = attribute.Key("litedev.configuration")
	AttrPlatform      = attribute.Key("litedev.platform")
	AttrBuildKind     = attribute.Key("litedev.build.kind")
	AttrBuildID       = attribute.Key("litedev.build.id")
	AttrOperation     = attribute.Key("litedev.operation")
)

// StartProjectLoadSpan starts a span for loading a project from its build script
func StartProjectLoadSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "project.load",
		trace.WithAttributes(
			AttrProjectPath.String(path),
			AttrOperation.String("load"),
		),
	)
}

// StartProjectSaveSpan starts a span for writing a project's build script
func StartProjectSaveSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "project.save",
		trace.WithAttributes(
			AttrProjectPath.String(path),
			AttrOperation.String("save"),
		),
	)
}

// StartBuildSpan starts a span covering one build or clean of a solution
func StartBuildSpan(ctx context.Context, kind, solutionPath, buildID, configuration, platform string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "solution."+kind,
		trace.WithAttributes(
			AttrBuildKind.String(kind),
			AttrSolutionPath.String(solutionPath),
			AttrBuildID.String(buildID),
			AttrConfiguration.String(configuration),
			AttrPlatform.String(platform),
			AttrOperation.String(kind),
		),
	)
}

// StartDebugSessionSpan starts a span covering a debugger session launch
func StartDebugSessionSpan(ctx context.Context, program, debuggerName string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "debugger.start",
		trace.WithAttributes(
			attribute.String("debugger.program", program),
			attribute.String("debugger.name", debuggerName),
			AttrOperation.String("debug"),
		),
	)
}

// EndSpanWithError ends a span with an error status
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
