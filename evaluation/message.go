package evaluation

import (
	"sort"
	"strings"
)

// Message explains part of an evaluation. Messages sharing a combine key
// are merged into one before reporting.
type Message interface {
	CombineKey() string
	Render() string
	// Combine merges other (same combine key) into a new message
	Combine(other Message) Message
}

// StaticMessage is fixed text; its combine key is the text itself
type StaticMessage string

// Static creates a StaticMessage
func Static(text string) StaticMessage {
	return StaticMessage(text)
}

func (m StaticMessage) CombineKey() string { return string(m) }

func (m StaticMessage) Render() string { return string(m) }

func (m StaticMessage) Combine(other Message) Message {
	if o, ok := other.(StaticMessage); ok && o == m {
		return m
	}
	return m.items().Combine(other)
}

func (m StaticMessage) items() ItemsMessage {
	return ItemsMessage{Key: m.CombineKey(), Groups: []ItemGroup{{Prefix: string(m)}}}
}

// ItemGroup is a prefix with the items listed after it
type ItemGroup struct {
	Prefix string
	Items  []string
}

// ItemsMessage renders each group as its prefix followed by a sorted,
// de-duplicated list of items, e.g. "Has received Cisplatin, Oxaliplatin".
// Groups are ordered by prefix and joined with ", ".
type ItemsMessage struct {
	Key    string
	Groups []ItemGroup
}

// NewItemsMessage normalises items into sorted, unique order
func NewItemsMessage(key, prefix string, items ...string) ItemsMessage {
	return ItemsMessage{Key: key, Groups: []ItemGroup{{Prefix: prefix, Items: sortedUnique(items)}}}
}

func (m ItemsMessage) CombineKey() string { return m.Key }

func (m ItemsMessage) Render() string {
	parts := make([]string, 0, len(m.Groups))
	for _, g := range m.Groups {
		text := g.Prefix + strings.Join(g.Items, ", ")
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}

// Combine unions the groups of both messages; items under the same prefix
// are merged. The result does not depend on grouping or order.
func (m ItemsMessage) Combine(other Message) Message {
	var o ItemsMessage
	switch v := other.(type) {
	case ItemsMessage:
		o = v
	case StaticMessage:
		o = v.items()
	default:
		o = ItemsMessage{Groups: []ItemGroup{{Prefix: other.Render()}}}
	}

	byPrefix := make(map[string][]string, len(m.Groups)+len(o.Groups))
	for _, g := range append(append([]ItemGroup(nil), m.Groups...), o.Groups...) {
		byPrefix[g.Prefix] = append(byPrefix[g.Prefix], g.Items...)
	}

	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	groups := make([]ItemGroup, len(prefixes))
	for i, p := range prefixes {
		groups[i] = ItemGroup{Prefix: p, Items: sortedUnique(byPrefix[p])}
	}
	return ItemsMessage{Key: m.Key, Groups: groups}
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Render returns the rendered text of each message
func Render(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Render()
	}
	return out
}
