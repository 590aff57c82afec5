package robots

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the narrow interface the scheduler depends on. It is
// implemented by CachedRobot and satisfied by test doubles.
type Robot interface {
	Init(userAgent string)
	Decide(target url.URL) (Decision, *RobotsError)
}

var _ Robot = (*CachedRobot)(nil)

// CachedRobot answers allow/disallow questions for a single crawl session.
// It fetches and caches robots.txt per host and evaluates the most
// specific matching allow/disallow rule for a given URL.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	userAgent    string
	fetcher      *RobotsFetcher
}

// NewCachedRobot creates a CachedRobot that has not yet been initialized
// with a user agent. Call Init or InitWithCache before Decide.
func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{metadataSink: metadataSink}
}

// Init prepares the robot with an in-memory, session-scoped cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares the robot with a caller-supplied cache, useful
// for sharing a cache across robots or for testing cache behavior.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, c)
}

// Decide fetches (or reuses the cached) robots.txt for target's host and
// returns whether target may be crawled.
func (r CachedRobot) Decide(target url.URL) (Decision, *RobotsError) {
	scheme := target.Scheme
	if scheme == "" {
		scheme = "https"
	}

	result, err := r.fetcher.Fetch(context.Background(), scheme, target.Host)
	if err != nil {
		if r.metadataSink != nil {
			r.metadataSink.RecordError(
				time.Now(),
				"robots",
				"decide",
				mapRobotsErrorToMetadataCause(err),
				err.Message,
				nil,
			)
		}
		return Decision{}, err
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	if !rs.hasGroups {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet}, nil
	}
	if !rs.matchedGroup {
		return Decision{Url: target, Allowed: true, Reason: UserAgentNotMatched}, nil
	}

	path := target.Path
	if path == "" {
		path = "/"
	}

	allowed, matched := evaluatePath(rs, path)
	if !matched {
		allowed = true
	}
	reason := NoMatchingRules
	if matched {
		if allowed {
			reason = AllowedByRobots
		} else {
			reason = DisallowedByRobots
		}
	}

	return Decision{
		Url:        target,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: rs.CrawlDelay(),
	}, nil
}

// evaluatePath finds the longest matching allow/disallow rule for path and
// reports whether it permits crawling. Ties between an allow and a
// disallow rule of equal pattern length favor the allow rule.
func evaluatePath(rs ruleSet, path string) (allowed bool, matched bool) {
	bestLen := -1

	for _, rule := range rs.AllowRules() {
		if matchesPattern(rule.Prefix(), path) && len(rule.Prefix()) >= bestLen {
			bestLen = len(rule.Prefix())
			allowed = true
			matched = true
		}
	}
	for _, rule := range rs.DisallowRules() {
		if matchesPattern(rule.Prefix(), path) && len(rule.Prefix()) > bestLen {
			bestLen = len(rule.Prefix())
			allowed = false
			matched = true
		}
	}

	return allowed, matched
}

// matchesPattern reports whether path satisfies a robots.txt rule pattern.
// "*" matches any run of characters; a trailing "$" anchors the match to
// the end of path. The pattern always anchors at the start of path.
func matchesPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	body := pattern
	if anchored {
		body = pattern[:len(pattern)-1]
	}

	segments := strings.Split(body, "*")
	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		idx := strings.Index(path[pos:], seg)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(seg)
	}

	if anchored && pos != len(path) {
		return false
	}
	return true
}
