// Package lexer contains the query lexer.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

type lexer struct {
	scanner scanner.Scanner
	tokens  []Token
	err     error
}

// TokenizeOptions is a Tokenize options structure.
type TokenizeOptions struct {
	// Filename sets filename for the scanner.
	Filename string
}

// Tokenize scans given string to query tokens.
func Tokenize(s string, opts TokenizeOptions) ([]Token, error) {
	l := lexer{}
	l.scanner.Init(strings.NewReader(s))
	l.scanner.Filename = opts.Filename
	// Single quotes delimit strings, not runes.
	l.scanner.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanComments | scanner.SkipComments
	l.scanner.Error = func(s *scanner.Scanner, msg string) {
		l.setError(msg, s.Position)
	}

	for {
		r := l.scanner.Scan()
		if l.err != nil {
			return l.tokens, l.err
		}
		if r == scanner.EOF {
			return l.tokens, nil
		}

		tok, ok := l.nextToken(r, l.scanner.TokenText())
		if !ok {
			return l.tokens, l.err
		}
		l.tokens = append(l.tokens, tok)
	}
}

func (l *lexer) setError(msg string, pos scanner.Position) {
	if l.err != nil {
		return
	}
	l.err = &Error{
		Msg: msg,
		Pos: pos,
	}
}

func (l *lexer) nextToken(r rune, text string) (tok Token, _ bool) {
	tok.Pos = l.scanner.Position
	tok.Text = text

	switch r {
	case scanner.Float:
		tok.Type = Number
		return tok, true
	case scanner.Int:
		tok.Type = Integer
		return tok, true
	case scanner.String:
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			l.setError(fmt.Sprintf("unquote string: %s", err), tok.Pos)
			return tok, false
		}
		tok.Type = String
		tok.Text = unquoted
		return tok, true
	case scanner.RawString:
		// Backticks quote identifiers: `service.name`.
		tok.Type = Ident
		tok.Text = strings.Trim(text, "`")
		return tok, true
	case '\'':
		s, ok := l.scanSingleQuoted()
		if !ok {
			l.setError("literal not terminated", tok.Pos)
			return tok, false
		}
		tok.Type = String
		tok.Text = s
		return tok, true
	case scanner.Ident:
		if tt, ok := keywords[strings.ToUpper(text)]; ok {
			tok.Type = tt
			return tok, true
		}
		tok.Type = Ident
		return tok, true
	}

	peeked := text + string(l.scanner.Peek())
	if tt, ok := tokens[peeked]; ok {
		tok.Type = tt
		tok.Text = peeked
		l.scanner.Next()
		return tok, true
	}
	if tt, ok := tokens[text]; ok {
		tok.Type = tt
		return tok, true
	}

	l.setError(fmt.Sprintf("unexpected character %q", text), tok.Pos)
	return tok, false
}

func (l *lexer) scanSingleQuoted() (string, bool) {
	var sb strings.Builder
	for {
		ch := l.scanner.Next()
		switch ch {
		case scanner.EOF, '\n':
			return "", false
		case '\'':
			return sb.String(), true
		case '\\':
			esc := l.scanner.Next()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\', '\'', '"':
				sb.WriteRune(esc)
			case scanner.EOF:
				return "", false
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(ch)
		}
	}
}
