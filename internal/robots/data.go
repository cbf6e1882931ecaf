package robots

import (
	"net/url"
	"strings"
	"time"
)

// Permission modeling

type pathRule struct {
	prefix string
}

type ruleSet struct {
	host string

	// The user-agent these rules apply to (resolved, not raw)
	userAgent string

	// Path-based rules, evaluated in order of precedence
	allowRules    []pathRule
	disallowRules []pathRule

	// Optional crawl delay from robots.txt
	crawlDelay *time.Duration

	// Metadata / observability
	fetchedAt time.Time
	sourceURL string

	// matchedGroup indicates if a user-agent group was matched in robots.txt
	// This is false when no group matches (not even wildcard *)
	matchedGroup bool

	// hasGroups indicates if the robots.txt file had any user-agent groups at all
	// This is false when the response had no groups (e.g., 404 or empty file)
	hasGroups bool
}

// decide evaluates a URL path against this ruleSet.
//
// Precedence follows the robots.txt convention: the longest matching rule
// wins; an allow rule wins a tie against a disallow rule of equal length.
// A path matching no rule is allowed.
func (r ruleSet) decide(path string) (bool, DecisionReason) {
	if path == "" {
		path = "/"
	}
	if !r.hasGroups {
		return true, EmptyRuleSet
	}
	if !r.matchedGroup {
		return true, UserAgentNotMatched
	}
	if len(r.allowRules) == 0 && len(r.disallowRules) == 0 {
		return true, EmptyRuleSet
	}

	bestAllow := -1
	for _, rule := range r.allowRules {
		if ruleMatches(rule.prefix, path) && len(rule.prefix) > bestAllow {
			bestAllow = len(rule.prefix)
		}
	}
	bestDisallow := -1
	for _, rule := range r.disallowRules {
		if ruleMatches(rule.prefix, path) && len(rule.prefix) > bestDisallow {
			bestDisallow = len(rule.prefix)
		}
	}

	if bestAllow < 0 && bestDisallow < 0 {
		return true, NoMatchingRules
	}
	if bestAllow >= bestDisallow {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}

// ruleMatches reports whether a robots.txt path pattern matches the given
// path. Patterns are prefix-anchored and may contain '*' (any run of
// characters) and a trailing '$' (end of path).
func ruleMatches(pattern, path string) bool {
	if pattern == "" {
		return true
	}
	if !strings.ContainsAny(pattern, "*$") {
		return strings.HasPrefix(path, pattern)
	}

	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	parts := strings.Split(pattern, "*")

	// First part is anchored at the start of the path.
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	pos := len(parts[0])

	for i := 1; i < len(parts); i++ {
		part := parts[i]
		if part == "" {
			// trailing '*' swallows the rest of the path
			if i == len(parts)-1 {
				return true
			}
			continue
		}
		if anchored && i == len(parts)-1 {
			// the last part of an anchored pattern must end the path
			rest := path[pos:]
			return strings.HasSuffix(rest, part)
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		pos += idx + len(part)
	}

	if anchored {
		return pos == len(path)
	}
	return true
}

type DecisionReason string

const (
	AllowedByRobots     DecisionReason = "allowed_by_robots"
	DisallowedByRobots  DecisionReason = "disallowed_by_robots"
	UserAgentNotMatched DecisionReason = "user_agent_not_matched"
	EmptyRuleSet        DecisionReason = "empty_rule_set"
	NoMatchingRules     DecisionReason = "no_matching_rules"
)

type Decision struct {
	Url url.URL

	Allowed bool

	// Why this decision was made (for logging/debugging)
	Reason DecisionReason

	// Crawl-delay declared for this host's matched group; zero when absent.
	CrawlDelay time.Duration
}
