package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/opencode-ai/workflow/internal/logging"
)

// ErrConfigSyntax is returned for config files that are not plain assignments.
var ErrConfigSyntax = errors.New("config syntax error")

// Parse reads a config file made of shell-style assignments:
//
//	MODEL=claude-sonnet-4-5
//	TEMPERATURE="0.7"
//	SYSTEM_PROMPTS=(base 'research notes')
//
// The file is parsed, never executed. Anything beyond literal assignments
// (commands, substitutions, variable expansion, redirections) is rejected.
// Unknown keys are logged and ignored.
func Parse(r io.Reader, source string) (map[Key]Value, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(r, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigSyntax, err)
	}

	values := make(map[Key]Value)
	for _, stmt := range file.Stmts {
		if err := parseStmt(stmt, source, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func parseStmt(stmt *syntax.Stmt, source string, values map[Key]Value) error {
	pos := stmt.Pos()
	if stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return syntaxErr(source, pos, "only plain assignments are allowed")
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) > 0 || len(call.Assigns) == 0 {
		return syntaxErr(source, pos, "only plain assignments are allowed")
	}

	for _, as := range call.Assigns {
		if as.Append || as.Naked || as.Index != nil {
			return syntaxErr(source, as.Pos(), "unsupported assignment form")
		}

		key, known := LookupKey(as.Name.Value)
		if !known {
			logging.Warn().
				Str("source", source).
				Str("key", as.Name.Value).
				Msg("Ignoring unknown config key")
			continue
		}

		v, err := assignValue(as, key, source)
		if err != nil {
			return err
		}
		values[key] = v
	}
	return nil
}

func assignValue(as *syntax.Assign, key Key, source string) (Value, error) {
	if as.Array != nil {
		if !key.IsList() {
			return Value{}, syntaxErr(source, as.Pos(), fmt.Sprintf("%s takes a single value, not a list", key))
		}
		var items []string
		for _, el := range as.Array.Elems {
			if el.Index != nil {
				return Value{}, syntaxErr(source, el.Pos(), "indexed array elements are not supported")
			}
			s, err := literal(el.Value, source)
			if err != nil {
				return Value{}, err
			}
			items = append(items, s)
		}
		return List(items...), nil
	}

	text := ""
	if as.Value != nil {
		s, err := literal(as.Value, source)
		if err != nil {
			return Value{}, err
		}
		text = s
	}
	if key.IsList() {
		// KEY=value is a one element list, KEY= is an empty one.
		return List(text), nil
	}
	return Scalar(text), nil
}

// literal converts a word to its string value, rejecting every kind of expansion.
func literal(word *syntax.Word, source string) (string, error) {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(unescape(p.Value, false))
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", syntaxErr(source, p.Pos(), "ANSI-C quoting is not supported")
			}
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				lit, ok := qp.(*syntax.Lit)
				if !ok {
					return "", syntaxErr(source, qp.Pos(), "expansions are not allowed in config values")
				}
				sb.WriteString(unescape(lit.Value, true))
			}
		default:
			return "", syntaxErr(source, part.Pos(), "expansions are not allowed in config values")
		}
	}
	return sb.String(), nil
}

// unescape removes shell backslash escapes. Inside double quotes only
// \", \\, \$ and \` are escapes.
func unescape(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			next := s[i+1]
			if !quoted || strings.IndexByte("\"\\$`", next) >= 0 {
				sb.WriteByte(next)
				i++
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func syntaxErr(source string, pos syntax.Pos, msg string) error {
	return fmt.Errorf("%w: %s:%d:%d: %s", ErrConfigSyntax, source, pos.Line(), pos.Col(), msg)
}
