// Package night derives "night mode" rules from a stylesheet: every
// recognized color declaration is darkened and emitted again under a
// ".night" ancestor selector.
package night

import (
	"regexp"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
	"go.uber.org/zap"

	"nightcss/color"
	"nightcss/common"
	"nightcss/css"
)

// Keys lists the properties considered for darkening. The order matters:
// when two keys produce the same output name (border and border-color) the
// one later in this list wins.
var Keys = [...]string{
	"background", "background-color",
	"border", "border-top", "border-bottom", "border-right", "border-left",
	"border-color", "border-top-color", "border-bottom-color", "border-right-color", "border-left-color",
	"color",
}

const (
	// Prefix scopes every generated rule.
	Prefix = ".night "

	// FontColor replaces text colors darker than fontThreshold.
	FontColor = "#385170"

	fontThreshold = 0xa0a0a0
	// colors with HSV value (in percent) below this are left alone
	minValuePercent = 40

	important = "!important"
)

// selectors already scoped to night mode are never darkened again
var nightScoped = regexp.MustCompile(`\.night\s`)

// Outcome tells which branch of the darkening policy handled a property.
type Outcome int

const (
	NoColor   Outcome = iota // value has no recognizable color
	FixedFont                // text color replaced with FontColor
	TooDark                  // color is dark already, nothing emitted
	Darkened                 // channels halved
)

func (o Outcome) String() string {
	switch o {
	case FixedFont:
		return "fixed-font"
	case TooDark:
		return "too-dark"
	case Darkened:
		return "darkened"
	default:
		return "no-color"
	}
}

// Emitted reports whether the outcome produces a declaration.
func (o Outcome) Emitted() bool {
	return o == FixedFont || o == Darkened
}

// Declaration is the night counterpart of a single source property.
type Declaration struct {
	Name    string
	Value   string
	Outcome Outcome
}

// Options tune the transform. The zero value is ready to use.
type Options struct {
	Match common.MatchMode
	Log   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

// OutputName returns the property the night value is written to: shorthand
// properties get an explicit "-color" suffix.
func OutputName(key string) string {
	if strings.HasSuffix(key, "color") {
		return key
	}
	return key + "-color"
}

// Evaluate applies the darkening policy to one property value.
func Evaluate(key, raw string, mode common.MatchMode) Declaration {
	decl := Declaration{Name: OutputName(key)}

	c, ok := color.Parse(raw, mode)
	if !ok {
		return decl
	}

	switch {
	case key == "color" && c.Uint32() < fontThreshold:
		decl.Outcome, decl.Value = FixedFont, FontColor
	case c.HSV().ValuePercent() < minValuePercent:
		decl.Outcome = TooDark
		return decl
	default:
		decl.Outcome, decl.Value = Darkened, c.Halve().Hex()
	}

	if strings.Contains(raw, important) {
		decl.Value += " " + important
	}
	return decl
}

// Synthesize builds night mode rules for already extracted style rules and
// returns them as a single CSS string.
func Synthesize(rules []css.StyleRule, opts Options) string {
	log := opts.logger()

	var sb strings.Builder
	for _, rule := range rules {
		if nightScoped.MatchString(rule.Selector) {
			log.Debug("Skipping night scoped rule", zap.String("selector", rule.Selector))
			continue
		}

		decls := orderedmap.NewOrderedMap[string, string]()
		for _, key := range Keys {
			raw, ok := rule.Properties.Get(key)
			if !ok || raw == "" {
				continue
			}
			d := Evaluate(key, raw, opts.Match)
			if ce := log.Check(zap.DebugLevel, "Evaluated property"); ce != nil {
				ce.Write(zap.String("selector", rule.Selector), zap.String("property", key),
					zap.String("value", raw), zap.Stringer("outcome", d.Outcome))
			}
			if d.Outcome.Emitted() {
				decls.Set(d.Name, d.Value)
			}
		}
		if decls.Len() == 0 {
			continue
		}

		selector := rule.Selector
		if selector == "body" {
			selector = ""
		}
		sb.WriteString(Prefix)
		sb.WriteString(selector)
		sb.WriteByte('{')
		for name, value := range decls.AllFromFront() {
			sb.WriteString(name)
			sb.WriteByte(':')
			sb.WriteString(value)
			sb.WriteByte(';')
		}
		sb.WriteByte('}')
	}
	return sb.String()
}

// Transform returns text with the synthesized night mode rules appended.
// The original text is never modified.
func Transform(text string, opts Options) string {
	return text + Synthesize(css.Extract(text), opts)
}
