package link

import "errors"

var (
	// ErrClosed is returned by Enqueue once Close has run.
	ErrClosed = errors.New("link: closed")
	// ErrGaveUp names the gaveUp condition. The reconnect loop does not
	// return it: it reports exhausting maxRetries through State()
	// (StateGaveUp) and the OnGaveUp callback.
	ErrGaveUp = errors.New("link: gave up reconnecting")
)
