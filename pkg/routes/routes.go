// Package routes provides the routing table for the edge router.
package routes

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Action defines what the router does with a matched request.
type Action string

// Possible actions.
const (
	// ActionForward proxies the request to an upstream.
	ActionForward Action = "forward"
	// ActionStatic serves a file from the rule's root directory.
	ActionStatic Action = "static"
	// ActionSPA serves a file from the rule's root directory, falling
	// back to the index document when the file is not present, so that
	// client-side routing keeps working.
	ActionSPA Action = "spa"
)

// CachePolicy describes the Cache-Control header of responses
// produced by a rule.
type CachePolicy struct {
	MaxAge    time.Duration
	Immutable bool
}

// Header renders the policy as a Cache-Control header value.
// Zero policy renders to an empty string, meaning no header is set.
func (p CachePolicy) Header() string {
	if p.MaxAge <= 0 {
		return ""
	}

	v := fmt.Sprintf("public, max-age=%d", int(p.MaxAge.Seconds()))
	if p.Immutable {
		v += ", immutable"
	}
	return v
}

// Rule is a single entry of the routing table. Rules are evaluated
// in the order they are declared, first match wins.
type Rule struct {
	// Name is an optional name of the rule, used in logs and metrics.
	Name string

	// Prefix is the path prefix the rule matches on.
	Prefix string

	// Action defines how the matched request is handled.
	Action Action

	// Upstream names the upstream to forward the request to,
	// required for ActionForward.
	Upstream string

	// Root is the filesystem directory to serve files from,
	// required for ActionStatic and ActionSPA.
	Root string

	// Index is the fallback document of an SPA rule,
	// defaults to index.html.
	Index string

	// Cache is the caching policy applied to responses.
	Cache CachePolicy

	// Headers are extra response headers set on every response
	// produced by the rule.
	Headers map[string]string

	// Quiet suppresses access logging for the rule.
	Quiet bool
}

// Matches returns true if the request path is matched by the rule.
func (r *Rule) Matches(path string) bool { return strings.HasPrefix(path, r.Prefix) }

// String returns the name of the rule.
func (r *Rule) String() string {
	name := r.Name
	if name == "" {
		name = r.Prefix
	}
	return fmt.Sprintf("(%s; %s %s)", name, r.Action, r.Prefix)
}

// Table is an ordered set of routing rules with the upstreams
// they refer to. The table is built once at startup and is
// immutable afterwards; changes require a router restart.
type Table struct {
	Upstreams map[string]*url.URL
	Rules     []*Rule
}

// Match returns the first rule matching the given request path.
func (t *Table) Match(path string) (*Rule, bool) {
	for _, r := range t.Rules {
		if r.Matches(path) {
			return r, true
		}
	}
	return nil, false
}

// Validate checks the table for internal consistency. It rejects
// rules that can never be reached because an earlier rule's prefix
// covers theirs, e.g. a generic /static/ declared before
// /static/admin/ would shadow the admin assets rule.
func (t *Table) Validate() error {
	if len(t.Rules) == 0 {
		return fmt.Errorf("empty routing table")
	}

	for i, r := range t.Rules {
		if r.Prefix == "" || !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("rule %s: prefix must start with /", r)
		}

		switch r.Action {
		case ActionForward:
			if _, ok := t.Upstreams[r.Upstream]; !ok {
				return fmt.Errorf("rule %s: unknown upstream %q", r, r.Upstream)
			}
		case ActionStatic, ActionSPA:
			if r.Root == "" {
				return fmt.Errorf("rule %s: root directory is not set", r)
			}
		default:
			return fmt.Errorf("rule %s: unknown action %q", r, r.Action)
		}

		for j := 0; j < i; j++ {
			if strings.HasPrefix(r.Prefix, t.Rules[j].Prefix) {
				return fmt.Errorf("rule %s is shadowed by %s", r, t.Rules[j])
			}
		}
	}

	return nil
}

type ruleKey struct{}

// ToContext puts the matched rule into the context.
func ToContext(ctx context.Context, r *Rule) context.Context {
	return context.WithValue(ctx, ruleKey{}, r)
}

// FromContext returns the rule matched for the request, if any.
func FromContext(ctx context.Context) (*Rule, bool) {
	r, ok := ctx.Value(ruleKey{}).(*Rule)
	return r, ok
}
