package tracecontext

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// captureStack returns up to depth call-site frames, rendered one per line
// as "file:line function". The frames start skip levels above the function
// that called captureStack; frames of this package above that point (emit,
// TraceExit, ...) are included.
func captureStack(skip, depth int) string {
	if depth <= 0 {
		return ""
	}

	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var lines []string
	for {
		frame, more := frames.Next()
		lines = append(lines, frame.File+":"+strconv.Itoa(frame.Line)+" "+frame.Function)
		if !more || len(lines) >= depth {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// appendStackToMessage renders the "\nStack (top N):\n<frames>" suffix
// described for error-level events when depth > 0.
func appendStackToMessage(message string, depth int) (newMessage, stack string) {
	if depth <= 0 {
		return message, ""
	}
	stack = captureStack(1, depth)
	if stack == "" {
		return message, ""
	}
	return fmt.Sprintf("%s\nStack (top %d):\n%s", message, depth, stack), stack
}
