package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser extracts color related rules from stylesheets.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse extracts rules from CSS text and collects warnings about constructs
// the extractor handles only approximately.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	log := p.log
	if len(source) > 0 && source[0] != "" {
		log = log.With(zap.String("source", source[0]))
	}
	log.Debug("Parsing CSS", zap.Int("bytes", len(data)))

	sheet := &Stylesheet{
		Rules:    Extract(string(data)),
		Warnings: Inspect(data),
	}
	for _, w := range sheet.Warnings {
		log.Debug("Stylesheet construct is not fully supported", zap.String("warning", w))
	}
	log.Debug("Parsed CSS", zap.Int("rules", len(sheet.Rules)), zap.Int("warnings", len(sheet.Warnings)))
	return sheet
}

// Inspect walks the stylesheet with a real CSS grammar parser and reports
// what the flat extractor would misread: at-rules, comments, grouped
// selectors and rules nested in blocks.
func Inspect(data []byte) []string {
	warnings := make([]string, 0)

	input := parse.NewInput(bytes.NewReader(data))
	parser := css.NewParser(input, false)

	depth := 0
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				warnings = append(warnings, "parse error: "+err.Error())
			}
			return warnings

		case css.CommentGrammar:
			warnings = append(warnings, "comment becomes part of the following selector: "+string(data))

		case css.AtRuleGrammar:
			warnings = append(warnings, "unsupported at-rule: "+string(data))

		case css.BeginAtRuleGrammar:
			warnings = append(warnings, "unsupported at-rule block: "+string(data)+" "+tokensText(parser.Values()))
			depth++

		case css.EndAtRuleGrammar:
			if depth > 0 {
				depth--
			}

		case css.BeginRulesetGrammar:
			selector := tokensText(parser.Values())
			if strings.Contains(selector, ",") {
				warnings = append(warnings, "grouped selector is treated as a single selector: "+selector)
			}
			if depth > 0 {
				warnings = append(warnings, "nested rule is treated as top level: "+selector)
			}
		}
	}
}

func tokensText(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}
