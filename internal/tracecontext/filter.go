package tracecontext

import (
	"regexp"
	"sync"
)

// patternCache compiles regexp patterns once; a pattern that fails to
// compile is cached as nil and treated as a non-match forever after,
// per the "invalid filter pattern" edge case.
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

func matchesAny(patterns []string, message string) bool {
	for _, p := range patterns {
		re := globalPatternCache.compile(p)
		if re == nil {
			continue
		}
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// passesContentFilter implements the producer-side include-wins rule: if
// include patterns exist, only a match against one of them passes
// (exclude patterns are not consulted at all). Otherwise the event passes
// unless it matches an exclude pattern.
func passesContentFilter(include, exclude []string, message string) bool {
	if len(include) > 0 {
		return matchesAny(include, message)
	}
	return !matchesAny(exclude, message)
}
