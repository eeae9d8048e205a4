package broker

import (
	"regexp"
	"sync"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// patternCache compiles regexp patterns once per broker process. A pattern
// that fails to compile is cached as nil and never matches.
type patternCache struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

var globalPatternCache = &patternCache{cache: make(map[string]*regexp.Regexp)}

func (pc *patternCache) compile(pattern string) *regexp.Regexp {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if re, ok := pc.cache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		pc.cache[pattern] = nil
		return nil
	}
	pc.cache[pattern] = re
	return re
}

func matchesAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if re := globalPatternCache.compile(p); re != nil && re.MatchString(s) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// passesFilter implements the broker's filter evaluation order (§4.4):
// levels, then sources, then include patterns, then exclude patterns —
// conjunctive, all applicable predicates must pass. This intentionally
// differs from the producer's include-wins rule (§9); see DESIGN.md for
// the recorded decision.
func passesFilter(f *wireevent.Filters, ev *wireevent.Event) bool {
	if f == nil {
		return true
	}
	if len(f.Levels) > 0 {
		ok := false
		for _, lvl := range f.Levels {
			if lvl == ev.Level {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, ev.Source) {
		return false
	}
	if len(f.IncludePatterns) > 0 && !matchesAny(f.IncludePatterns, ev.Message) {
		return false
	}
	if len(f.ExcludePatterns) > 0 && matchesAny(f.ExcludePatterns, ev.Message) {
		return false
	}
	return true
}
