// Package tracecontext implements the producer-side trace context engine:
// scoped and interactive nesting discipline, entry/exit symmetry, and
// include/exclude filter evaluation (see the trace context engine design
// of the tracing and logging fabric this module implements).
package tracecontext

import (
	"sync"
	"time"
)

// stackFrame is one entry on a Context's function stack.
type stackFrame struct {
	functionName string
	startTime    time.Time
	level        int
}

// Context is a producer-private record holding nesting depth, the function
// stack, the thread id, and the include/exclude filters for one logical
// task. It is never serialized; only the events it produces cross the
// link.
type Context struct {
	mu sync.Mutex

	threadID      int
	nestingLevel  int
	functionStack []stackFrame

	source          string
	includePatterns []string
	excludePatterns []string
}

func newContext(threadID int, source string) *Context {
	return &Context{threadID: threadID, source: source}
}

// clone returns an independent copy of c, used when a scope overlays a
// parent context: mutations inside the child must never leak back up.
func (c *Context) clone() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	stack := make([]stackFrame, len(c.functionStack))
	copy(stack, c.functionStack)

	return &Context{
		threadID:        c.threadID,
		nestingLevel:    c.nestingLevel,
		functionStack:   stack,
		source:          c.source,
		includePatterns: append([]string(nil), c.includePatterns...),
		excludePatterns: append([]string(nil), c.excludePatterns...),
	}
}

// NestingLevel returns the context's current depth.
func (c *Context) NestingLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nestingLevel
}

// StackDepth returns the number of live entry frames.
func (c *Context) StackDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.functionStack)
}

// ThreadID returns the context's producer-assigned thread id.
func (c *Context) ThreadID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

func (c *Context) pushFrame(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nestingLevel++
	c.functionStack = append(c.functionStack, stackFrame{
		functionName: name,
		startTime:    time.Now(),
		level:        c.nestingLevel,
	})
	return c.nestingLevel
}

// popFrame removes the top frame. It returns the popped frame (whose level
// is the depth its entry rendered at, so exit can render at the same
// depth), whether the popped frame's name matched the requested one, and
// whether there was a frame to pop at all.
func (c *Context) popFrame(name string) (frame stackFrame, matched bool, had bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.functionStack) == 0 {
		return stackFrame{}, false, false
	}

	top := c.functionStack[len(c.functionStack)-1]
	c.functionStack = c.functionStack[:len(c.functionStack)-1]
	return top, top.functionName == name, true
}

// decrementNesting saturates at 0, per the nesting-level invariant.
func (c *Context) decrementNesting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nestingLevel > 0 {
		c.nestingLevel--
	}
}

func (c *Context) childLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.functionStack) > 0 {
		return c.nestingLevel + 1
	}
	return c.nestingLevel
}

func (c *Context) setFilters(include, exclude []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.includePatterns = include
	c.excludePatterns = exclude
}

func (c *Context) setSource(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
}

func (c *Context) getSource() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

func (c *Context) filters() (include, exclude []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.includePatterns...), append([]string(nil), c.excludePatterns...)
}

func (c *Context) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nestingLevel = 0
	c.functionStack = nil
}
