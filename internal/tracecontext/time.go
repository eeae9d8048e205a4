package tracecontext

import "time"

func nowUTC() time.Time {
	return time.Now().UTC()
}

func sinceMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
