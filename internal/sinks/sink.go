// Package sinks renders events to producer-local destinations: a file and
// the console. Both share the exact line format mandated by §4.2/§6 of
// the tracing and logging fabric this module implements, so producer
// output is byte-identical regardless of destination.
package sinks

import (
	"fmt"
	"strings"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// RenderLine renders ev as a single `\n`-terminated line:
//
//	[HH.MM.SS.mmm] <pipes><content>
//
// where pipes is "|" repeated ev.NestingLevel times. Trace events
// (entry/exit) render their own message directly after the pipes; plain
// logs at a nesting level greater than zero get two spaces between the
// pipes and the message, producing the "children of frame" visual
// nesting (e.g. "||  hi" for a log at nestingLevel=2).
func RenderLine(ev *wireevent.Event) string {
	pipes := strings.Repeat("|", ev.NestingLevel)

	content := ev.Message
	if !ev.IsTrace() && ev.NestingLevel > 0 {
		content = "  " + content
	}

	ts := ev.Timestamp.Local().Format("15.04.05.000")
	return fmt.Sprintf("[%s] %s%s\n", ts, pipes, content)
}
