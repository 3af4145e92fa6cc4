// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query parses boolean search expressions (AND, OR, NOT, quoted
// phrases, parentheses) so platforms without boolean search can be sent a
// base term and have their results re-filtered locally.
package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrEmpty is returned when the expression holds no search terms.
var ErrEmpty = errors.New("query is empty")

// Query is a parsed boolean expression.
type Query struct {
	raw  string
	root node
	ops  bool
}

// Parse builds a Query from s. Operators are recognized in upper case only,
// matching the convention of the platforms that support them; adjacent
// terms are joined with an implicit AND.
func Parse(s string) (*Query, error) {
	toks := tokenize(s)
	if len(toks) == 0 {
		return nil, ErrEmpty
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("unexpected %q at position %d", p.toks[p.pos].text, p.pos+1)
	}
	return &Query{raw: strings.TrimSpace(s), root: root, ops: p.sawOperator}, nil
}

// String returns the expression as the user wrote it.
func (q *Query) String() string { return q.raw }

// HasOperators reports whether the expression needs boolean support:
// an explicit operator, a quoted phrase, or more than one term.
func (q *Query) HasOperators() bool { return q.ops }

// BaseTerm returns the first positive term or phrase, which is what gets
// sent to platforms that cannot evaluate the full expression.
func (q *Query) BaseTerm() string {
	terms := q.Terms()
	if len(terms) == 0 {
		return ""
	}
	return terms[0]
}

// Terms lists the positive (non-negated) terms and phrases in order.
func (q *Query) Terms() []string {
	var out []string
	q.root.collect(&out, false)
	return out
}

// Match reports whether text satisfies the expression. Terms match whole
// words case-insensitively; phrases match as contiguous word sequences.
func (q *Query) Match(text string) bool {
	return q.root.match(strings.ToLower(text))
}

// Native renders the expression in the syntax shared by platforms with
// boolean search: juxtaposition for AND, OR, a leading minus for NOT.
func (q *Query) Native() string { return q.root.render() }

type node interface {
	match(lowerText string) bool
	collect(out *[]string, negated bool)
	render() string
}

type termNode struct {
	value string // lower-cased
	orig  string
}

func (n termNode) match(text string) bool { return containsWord(text, n.value) }

func (n termNode) collect(out *[]string, negated bool) {
	if !negated {
		*out = append(*out, n.orig)
	}
}

func (n termNode) render() string {
	if strings.ContainsRune(n.orig, ' ') {
		return `"` + n.orig + `"`
	}
	return n.orig
}

type andNode struct{ children []node }

func (n andNode) render() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = group(c, isOr)
	}
	return strings.Join(parts, " ")
}

func (n andNode) match(text string) bool {
	for _, c := range n.children {
		if !c.match(text) {
			return false
		}
	}
	return true
}

func (n andNode) collect(out *[]string, negated bool) {
	for _, c := range n.children {
		c.collect(out, negated)
	}
}

type orNode struct{ children []node }

func (n orNode) render() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = group(c, isAnd)
	}
	return strings.Join(parts, " OR ")
}

func (n orNode) match(text string) bool {
	for _, c := range n.children {
		if c.match(text) {
			return true
		}
	}
	return false
}

func (n orNode) collect(out *[]string, negated bool) {
	for _, c := range n.children {
		c.collect(out, negated)
	}
}

type notNode struct{ child node }

func (n notNode) match(text string) bool { return !n.child.match(text) }

func (n notNode) collect(out *[]string, negated bool) { n.child.collect(out, !negated) }

func (n notNode) render() string {
	if _, ok := n.child.(termNode); ok {
		return "-" + n.child.render()
	}
	return "-(" + n.child.render() + ")"
}

func isOr(n node) bool {
	_, ok := n.(orNode)
	return ok
}

func isAnd(n node) bool {
	_, ok := n.(andNode)
	return ok
}

// group parenthesizes n when it would otherwise bind wrongly in its parent.
func group(n node, needs func(node) bool) string {
	if needs(n) {
		return "(" + n.render() + ")"
	}
	return n.render()
}

// containsWord finds needle in haystack with non-word characters (or the
// string edges) on both sides.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	from := 0
	for {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := []rune(s[i:])[0]
	return !isWordRune(r)
}

func lastRune(s string) rune {
	rs := []rune(s)
	return rs[len(rs)-1]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
