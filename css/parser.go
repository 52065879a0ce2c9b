package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS stylesheets into rules.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css")}
}

// Load reads and parses stylesheet file. Empty stylesheet is an error since
// there would be nothing to embed.
func (p *Parser) Load(path string) (*Stylesheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read stylesheet: %w", err)
	}
	sheet := p.Parse(data, path)
	if len(sheet.Rules) == 0 && len(sheet.Imports) == 0 {
		return nil, fmt.Errorf("stylesheet has no rules (%s)", path)
	}
	return sheet, nil
}

// Parse parses CSS text. Parsing never fails, unsupported constructs are
// skipped and reported in Warnings. Optional source is used for logging.
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	sheet := &Stylesheet{}
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				sheet.Warnings = append(sheet.Warnings, fmt.Sprintf("parse error: %v", err))
			}
			return sheet

		case css.AtRuleGrammar:
			if rule := string(data); strings.EqualFold(rule, "@import") {
				if url := importURL(parser.Values()); url != "" {
					sheet.Imports = append(sheet.Imports, url)
				}
			} else {
				sheet.Warnings = append(sheet.Warnings, "skipping "+rule)
			}

		case css.BeginAtRuleGrammar:
			rule := string(data)
			if !strings.EqualFold(rule, "@media") {
				sheet.Warnings = append(sheet.Warnings, "skipping "+rule+" block")
				skipBlock(parser)
				continue
			}
			media := joinTokens(parser.Values())
			n := len(sheet.Rules)
			p.parseMedia(parser, sheet, media)
			p.log.Debug("Parsed @media block", zap.String("query", media), zap.Int("rules", len(sheet.Rules)-n))

		case css.BeginRulesetGrammar:
			sheet.Rules = append(sheet.Rules, p.parseRuleset(parser, data, ""))

		case css.QualifiedRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "skipping rule without declarations")
		}
	}
}

func (p *Parser) parseMedia(parser *css.Parser, sheet *Stylesheet, media string) {
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar, css.EndAtRuleGrammar:
			return
		case css.BeginRulesetGrammar:
			sheet.Rules = append(sheet.Rules, p.parseRuleset(parser, data, media))
		case css.BeginAtRuleGrammar:
			sheet.Warnings = append(sheet.Warnings, "skipping nested "+string(data)+" block")
			skipBlock(parser)
		}
	}
}

func (p *Parser) parseRuleset(parser *css.Parser, data []byte, media string) Rule {
	rule := Rule{Media: media}
	values := parser.Values()

	var sb strings.Builder
	sb.Write(data)
	for i, v := range values {
		sb.Write(v.Data)
		if v.TokenType == css.DelimToken && string(v.Data) == "." && i+1 < len(values) && values[i+1].TokenType == css.IdentToken {
			rule.classes = append(rule.classes, string(values[i+1].Data))
		}
	}
	for s := range strings.SplitSeq(sb.String(), ",") {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			rule.Selectors = append(rule.Selectors, s)
		}
	}

	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return rule
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if d, ok := declaration(string(data), parser.Values()); ok {
				rule.Declarations = append(rule.Declarations, d)
			}
		}
	}
}

// declaration builds declaration from value tokens, trailing "!important" is
// recognized and removed from value.
func declaration(property string, tokens []css.Token) (Declaration, bool) {
	d := Declaration{Property: strings.ToLower(property)}
	if strings.HasPrefix(property, "--") {
		d.Property = property
	}

	end := len(tokens)
	for end > 0 && tokens[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end >= 2 && tokens[end-1].TokenType == css.IdentToken && strings.EqualFold(string(tokens[end-1].Data), "important") {
		i := end - 2
		for i >= 0 && tokens[i].TokenType == css.WhitespaceToken {
			i--
		}
		if i >= 0 && tokens[i].TokenType == css.DelimToken && string(tokens[i].Data) == "!" {
			d.Important, end = true, i
		}
	}
	d.Value = joinTokens(tokens[:end])
	return d, d.Value != ""
}

// joinTokens renders tokens collapsing whitespace runs to single space.
func joinTokens(tokens []css.Token) string {
	var sb strings.Builder
	space := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			space = sb.Len() > 0
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.Write(t.Data)
	}
	return sb.String()
}

// importURL extracts location from @import tokens: "url", url("url") and
// url(url) are recognized.
func importURL(tokens []css.Token) string {
	for _, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			s := strings.TrimSuffix(strings.TrimPrefix(string(t.Data), "url("), ")")
			return unquote(strings.TrimSpace(s))
		}
	}
	return ""
}

func skipBlock(parser *css.Parser) {
	for depth := 1; depth > 0; {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
