package tracecontext

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// Sink is a destination for a rendered event, local to the producer
// process (a file or the console).
type Sink interface {
	Write(ev *wireevent.Event) error
}

// Transport offers a frame to the link for delivery to the broker. It is
// satisfied by internal/link.Link; producers configured without a link
// (serverless mode) leave this nil.
type Transport interface {
	Enqueue(frame *wireevent.Frame) error
}

type ctxKeyType struct{}

var ctxKey = ctxKeyType{}

// Overrides narrows or tags a scope's context relative to its parent.
type Overrides struct {
	Source          string
	IncludePatterns []string
	ExcludePatterns []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource sets the default producer source identity (e.g. hostname).
func WithSource(source string) Option {
	return func(e *Engine) { e.source = source }
}

// WithMaxTraceLevel bounds emitted nesting depth; -1 means unlimited.
func WithMaxTraceLevel(level int) Option {
	return func(e *Engine) { e.maxTraceLevel = level }
}

// WithErrorStackDepth sets how many call-site frames are appended to
// error-level events. 0 disables stack capture.
func WithErrorStackDepth(depth int) Option {
	return func(e *Engine) { e.errorStackDepth = depth }
}

// WithSinks registers local sinks that every passing event is rendered to.
func WithSinks(sinks ...Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// WithTransport wires the link transport used to offer frames to the
// broker. Omit it to run in serverless mode (§4.3).
func WithTransport(t Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithTracingEnabled toggles whether trace (entry/exit) events are
// emitted at all; plain logs are unaffected.
func WithTracingEnabled(enabled bool) Option {
	return func(e *Engine) { e.tracingEnabled = enabled }
}

// Engine is the producer's trace context engine (§4.1). It is safe for
// concurrent use by multiple scopes; the interactive context is not (by
// design, per §4.1/§5).
type Engine struct {
	mu sync.Mutex

	source          string
	maxTraceLevel   int
	errorStackDepth int
	tracingEnabled  bool

	sinks     []Sink
	transport Transport

	nextThreadID atomic.Int64

	interactive    bool
	interactiveCtx *Context
	defaultCtx     *Context
}

// New builds an Engine. Tracing is enabled by default; maxTraceLevel is
// unbounded (-1); error events carry no stack by default.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxTraceLevel:  -1,
		tracingEnabled: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunInScope pushes a context snapshot (a clone of the scope context already
// attached to ctx, or a fresh context with a new thread id when none is
// attached, overlaid with overrides), runs fn with a context
// carrying it, and lets the snapshot go out of scope on every exit path —
// mutations inside fn never leak to the caller's context. Concurrent
// scopes derived from the same parent are independent: each gets its own
// cloned *Context.
func (e *Engine) RunInScope(ctx context.Context, overrides Overrides, fn func(ctx context.Context) error) error {
	parent := e.scopedContextFrom(ctx)

	var child *Context
	if parent != nil {
		child = parent.clone()
	} else {
		child = newContext(int(e.nextThreadID.Add(1)), e.source)
	}

	if overrides.Source != "" {
		child.setSource(overrides.Source)
	}
	if overrides.IncludePatterns != nil || overrides.ExcludePatterns != nil {
		child.setFilters(overrides.IncludePatterns, overrides.ExcludePatterns)
	}

	return fn(context.WithValue(ctx, ctxKey, child))
}

// scopedContextFrom returns the *Context attached to ctx via RunInScope, or
// nil if none is attached.
func (e *Engine) scopedContextFrom(ctx context.Context) *Context {
	tc, _ := ctx.Value(ctxKey).(*Context)
	return tc
}

// resolveContext implements the §4.1 context resolution order: interactive
// context first, then the scope-attached context, then a lazily-created
// "current" context shared across unscoped calls.
func (e *Engine) resolveContext(ctx context.Context) *Context {
	e.mu.Lock()
	if e.interactive {
		if e.interactiveCtx == nil {
			e.interactiveCtx = newContext(int(e.nextThreadID.Add(1)), e.source)
		}
		tc := e.interactiveCtx
		e.mu.Unlock()
		return tc
	}
	e.mu.Unlock()

	if tc := e.scopedContextFrom(ctx); tc != nil {
		return tc
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.defaultCtx == nil {
		e.defaultCtx = newContext(int(e.nextThreadID.Add(1)), e.source)
	}
	return e.defaultCtx
}

// EnableInteractive switches the engine into interactive mode: a single
// persistent context replaces per-scope contexts.
func (e *Engine) EnableInteractive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interactive = true
	if e.interactiveCtx == nil {
		e.interactiveCtx = newContext(int(e.nextThreadID.Add(1)), e.source)
	}
}

// DisableInteractive reverts to scoped-mode resolution.
func (e *Engine) DisableInteractive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interactive = false
}

// ResetContext clears the nesting state of whichever context ctx currently
// resolves to (the persistent context in interactive mode; the scoped or
// default context otherwise).
func (e *Engine) ResetContext(ctx context.Context) {
	e.resolveContext(ctx).reset()
}

// Info is the lifecycle snapshot returned by GetTraceInfo.
type Info struct {
	ThreadID     int
	NestingLevel int
	StackDepth   int
	Interactive  bool
}

// GetTraceInfo exposes the resolved context's lifecycle state.
func (e *Engine) GetTraceInfo(ctx context.Context) Info {
	tc := e.resolveContext(ctx)
	e.mu.Lock()
	interactive := e.interactive
	e.mu.Unlock()
	return Info{
		ThreadID:     tc.ThreadID(),
		NestingLevel: tc.NestingLevel(),
		StackDepth:   tc.StackDepth(),
		Interactive:  interactive,
	}
}

// TraceEntry records entry into functionName and emits the corresponding
// ">>> Call" trace event. It is a no-op (returning nil) if tracing is
// disabled.
func (e *Engine) TraceEntry(ctx context.Context, functionName string, args ...any) *wireevent.Event {
	if !e.tracingEnabled {
		return nil
	}

	tc := e.resolveContext(ctx)
	level := tc.pushFrame(functionName)

	message := fmt.Sprintf(">>> Call %s", functionName)
	if len(args) > 0 {
		message = fmt.Sprintf("%s[ %s]", message, formatArgs(args))
	}

	ev := &wireevent.Event{
		ID:           newEventID(),
		Timestamp:    nowUTC(),
		Level:        wireevent.LevelInfo,
		Message:      message,
		Source:       tc.getSource(),
		ThreadID:     tc.ThreadID(),
		NestingLevel: level,
		Kind:         wireevent.KindEntry,
		FunctionName: functionName,
	}
	if len(args) > 0 {
		ev.Args = append([]any(nil), args...)
	}

	return e.emit(tc, ev)
}

// TraceExit pops the matching frame (LIFO by functionName; a mismatch is
// surfaced as a diagnostic but the exit still records and nesting still
// decrements) and emits the "<<< Exit" trace event **before** decrementing
// nestingLevel, so entry and exit render at identical depth.
func (e *Engine) TraceExit(ctx context.Context, functionName string, returnValue any, execErr error) *wireevent.Event {
	if !e.tracingEnabled {
		return nil
	}

	tc := e.resolveContext(ctx)
	frame, matched, had := tc.popFrame(functionName)

	level := tc.NestingLevel()
	startTime := nowUTC()
	if had {
		level = frame.level
		startTime = frame.startTime
	}

	name := functionName
	if had && !matched {
		// Diagnostic: pairing mismatch. We still record the popped frame's
		// own name/level so the rendered depth matches its entry.
		name = frame.functionName
	}

	message := fmt.Sprintf("<<< Exit %s", name)
	if execErr != nil {
		message = fmt.Sprintf("%s[ ERROR]", message)
	} else if returnValue != nil {
		message = fmt.Sprintf("%s[ %v]", message, returnValue)
	}
	if had && !matched {
		message = fmt.Sprintf("%s (mismatched exit: expected %q)", message, functionName)
	}

	execMS := int64(0)
	if had {
		execMS = sinceMillis(startTime)
	}

	lvl := wireevent.LevelInfo
	if execErr != nil {
		lvl = wireevent.LevelError
	}

	ev := &wireevent.Event{
		ID:              newEventID(),
		Timestamp:       nowUTC(),
		Level:           lvl,
		Message:         message,
		Source:          tc.getSource(),
		ThreadID:        tc.ThreadID(),
		NestingLevel:    level,
		Kind:            wireevent.KindExit,
		FunctionName:    name,
		ReturnValue:     returnValue,
		ExecutionTimeMS: &execMS,
	}

	result := e.emit(tc, ev)

	// Emission precedes decrement so entry and exit render at the same
	// indent; decrement happens only now.
	tc.decrementNesting()

	return result
}

// Log emits a plain log event. When inside a traced frame it is rendered
// as a child of the current frame (nestingLevel = ctx.nestingLevel+1);
// otherwise it uses the context's current nesting level directly.
func (e *Engine) Log(ctx context.Context, level wireevent.Level, message string, data any) *wireevent.Event {
	tc := e.resolveContext(ctx)

	ev := &wireevent.Event{
		ID:           newEventID(),
		Timestamp:    nowUTC(),
		Level:        level,
		Message:      message,
		Source:       tc.getSource(),
		ThreadID:     tc.ThreadID(),
		NestingLevel: tc.childLevel(),
		Data:         wireevent.Sanitize(data),
	}

	return e.emit(tc, ev)
}

// Exec wraps fn with a traceEntry/traceExit pair. A panic inside fn is
// recorded as an error exit and then re-raised, so cancellation and other
// abrupt failures still unwind through a recorded exit, per §5.
func (e *Engine) Exec(ctx context.Context, functionName string, fn func(ctx context.Context) (any, error), args ...any) (result any, err error) {
	e.TraceEntry(ctx, functionName, args...)

	defer func() {
		if r := recover(); r != nil {
			e.TraceExit(ctx, functionName, nil, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err = fn(ctx)
	e.TraceExit(ctx, functionName, result, err)
	return result, err
}

// Wrap returns a callable that invokes Exec with functionName as an
// override for fn's own name.
func (e *Engine) Wrap(functionName string, fn func(ctx context.Context) (any, error)) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return e.Exec(ctx, functionName, fn)
	}
}

// emit runs the filter pipeline, enriches error-level events with a call
// stack, and on pass, feeds local sinks and the transport.
func (e *Engine) emit(tc *Context, ev *wireevent.Event) *wireevent.Event {
	for i, a := range ev.Args {
		ev.Args[i] = wireevent.Sanitize(a)
	}
	ev.ReturnValue = wireevent.Sanitize(ev.ReturnValue)

	if ev.Level == wireevent.LevelError {
		if depth := e.errorStackDepth; depth > 0 {
			msg, stack := appendStackToMessage(ev.Message, depth)
			ev.Message = msg
			ev.Stack = stack
		}
	}

	if !e.passesFilter(tc, ev) {
		return nil
	}

	for _, sink := range e.sinks {
		_ = sink.Write(ev)
	}

	if e.transport != nil {
		frameType := wireevent.FrameLog
		if ev.IsTrace() {
			frameType = wireevent.FrameTrace
		}
		_ = e.transport.Enqueue(wireevent.NewEventFrame(frameType, ev.ID, "", ev))
	}

	return ev
}

func (e *Engine) passesFilter(tc *Context, ev *wireevent.Event) bool {
	if ev.IsTrace() && !e.tracingEnabled {
		return false
	}
	if e.maxTraceLevel >= 0 && ev.NestingLevel > e.maxTraceLevel {
		return false
	}

	include, exclude := tc.filters()
	return passesContentFilter(include, exclude, ev.Message)
}

func formatArgs(args []any) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%v", a)
	}
	return s
}
