package links

import (
	"net/url"
	"regexp"
	"strings"
)

// compiledPattern is one exclusion pattern, held as a regular expression
// when it compiles and as a plain substring otherwise.
type compiledPattern struct {
	raw       string
	expr      *regexp.Regexp
	substring string
}

func compilePatterns(patterns []string) []compiledPattern {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if expr, err := regexp.Compile(pattern); err == nil {
			compiled = append(compiled, compiledPattern{raw: pattern, expr: expr})
		} else {
			compiled = append(compiled, compiledPattern{raw: pattern, substring: pattern})
		}
	}
	return compiled
}

func (p compiledPattern) matches(rawURL string) bool {
	if p.expr != nil {
		return p.expr.MatchString(rawURL)
	}
	return strings.Contains(rawURL, p.substring)
}

// Policy decides which discovered URLs are admissible. Exactly one domain
// rule applies: an explicit allow-list when configured, same-host-as-base
// when same-host mode is on, any host otherwise. Exclusion patterns apply
// on top of the domain rule.
type Policy struct {
	allowedHosts     map[string]struct{}
	sameHostOnly     bool
	excludedPatterns []compiledPattern
}

func NewPolicy(allowedHosts map[string]struct{}, sameHostOnly bool, excludedPatterns []string) Policy {
	hosts := make(map[string]struct{}, len(allowedHosts))
	for host := range allowedHosts {
		hosts[strings.ToLower(host)] = struct{}{}
	}
	return Policy{
		allowedHosts:     hosts,
		sameHostOnly:     sameHostOnly,
		excludedPatterns: compilePatterns(excludedPatterns),
	}
}

// Admits reports whether candidate passes the domain rule and no exclusion
// pattern matches it.
func (p Policy) Admits(candidate url.URL, base url.URL) bool {
	host := strings.ToLower(candidate.Host)

	switch {
	case len(p.allowedHosts) > 0:
		if _, allowed := p.allowedHosts[host]; !allowed {
			return false
		}
	case p.sameHostOnly:
		if host != strings.ToLower(base.Host) {
			return false
		}
	}

	rawURL := candidate.String()
	for _, pattern := range p.excludedPatterns {
		if pattern.matches(rawURL) {
			return false
		}
	}
	return true
}
