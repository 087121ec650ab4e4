package css

import (
	"iter"

	"github.com/elliotchance/orderedmap/v3"
)

// Properties maps property names to raw values keeping the order in which
// names were first seen. Setting an existing name replaces its value in
// place.
type Properties struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewProperties returns an empty property set.
func NewProperties() *Properties {
	return &Properties{m: orderedmap.NewOrderedMap[string, string]()}
}

func (p *Properties) Set(name, value string) {
	p.m.Set(name, value)
}

func (p *Properties) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	return p.m.Get(name)
}

func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return p.m.Len()
}

// All iterates over properties in insertion order.
func (p *Properties) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if p == nil {
			return
		}
		for k, v := range p.m.AllFromFront() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// StyleRule is a single flat rule block which mentions at least one color
// related property.
type StyleRule struct {
	Selector     string      // trimmed text before '{'
	Declarations string      // trimmed text after '{'
	Properties   *Properties // color related declarations only
}

// Stylesheet is the result of parsing a whole stylesheet text.
type Stylesheet struct {
	Rules    []StyleRule
	Warnings []string // constructs the flat extractor does not understand
}
