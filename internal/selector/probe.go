// internal/selector/probe.go
package selector

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// queryMatcher is a comma-joined query compiled alternative by alternative.
// Alternatives that fail to compile are dropped, so one bad alternative
// never poisons the others.
type queryMatcher []cascadia.Selector

// Match returns true if any alternative matches n.
func (m queryMatcher) Match(n *html.Node) bool {
	for _, sel := range m {
		if sel.Match(n) {
			return true
		}
	}
	return false
}

// MatchAll returns n and its descendants that match, in document order.
func (m queryMatcher) MatchAll(n *html.Node) []*html.Node {
	if len(m) == 0 {
		return nil
	}
	return m.matchAllInto(n, nil)
}

func (m queryMatcher) matchAllInto(n *html.Node, storage []*html.Node) []*html.Node {
	if n.Type == html.ElementNode && m.Match(n) {
		storage = append(storage, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		storage = m.matchAllInto(c, storage)
	}
	return storage
}

// Filter returns the nodes that match.
func (m queryMatcher) Filter(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if m.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// maxCompiled bounds the compiled query memo. Library queries are few; the
// bound only matters for a stream of distinct escalation proposals.
const maxCompiled = 512

// matcherMemo keeps compiled queries. When full it starts over.
type matcherMemo struct {
	mu    sync.Mutex
	limit int
	byKey map[string]queryMatcher
}

func newMatcherMemo(limit int) *matcherMemo {
	return &matcherMemo{limit: limit, byKey: make(map[string]queryMatcher)}
}

func (c *matcherMemo) get(query string) (queryMatcher, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byKey[query]
	return m, ok
}

func (c *matcherMemo) put(query string, m queryMatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byKey) >= c.limit {
		c.byKey = make(map[string]queryMatcher, c.limit)
	}
	c.byKey[query] = m
}

func (c *matcherMemo) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

var compiled = newMatcherMemo(maxCompiled)

// Compile turns a query into a goquery matcher. It never fails: an empty or
// entirely malformed query yields a matcher that matches nothing.
func Compile(query string) goquery.Matcher {
	if m, ok := compiled.get(query); ok {
		return m
	}
	var m queryMatcher
	for _, alt := range SplitAlternatives(query) {
		if sel, ok := compileAlternative(alt); ok {
			m = append(m, sel)
		}
	}
	compiled.put(query, m)
	return m
}

func compileAlternative(alt string) (sel cascadia.Selector, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sel, ok = nil, false
		}
	}()
	s, err := cascadia.Compile(alt)
	if err != nil {
		return nil, false
	}
	return s, true
}

// Valid reports whether at least one alternative of the query compiles.
func Valid(query string) bool {
	return len(Compile(query).(queryMatcher)) > 0
}

// Select returns the descendants of root matching any alternative of the query.
func Select(root *goquery.Selection, query string) *goquery.Selection {
	return root.FindMatcher(Compile(query))
}

// Probe reports whether the query currently matches at least one node under root.
func Probe(root *goquery.Selection, query string) bool {
	if root == nil || strings.TrimSpace(query) == "" {
		return false
	}
	return root.FindMatcher(goquery.SingleMatcher(Compile(query))).Length() > 0
}

// SplitAlternatives splits a comma-joined query into its alternatives. Commas
// inside quotes, brackets or parentheses do not split.
func SplitAlternatives(query string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = appendAlternative(parts, query[start:i])
			start = i + 1
		}
	}
	return appendAlternative(parts, query[start:])
}

func appendAlternative(parts []string, alt string) []string {
	alt = strings.TrimSpace(alt)
	if alt == "" {
		return parts
	}
	return append(parts, alt)
}
