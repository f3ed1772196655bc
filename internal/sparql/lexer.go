package sparql

import (
	"fmt"
	"strings"
)

// TokenKind identifies the type of a lexer token.
type TokenKind int

const (
	// Special
	tokEOF TokenKind = iota

	// Terms
	tokVar     // ?name or $name; Text holds the bare name
	tokIRI     // <http://...>; Text holds the IRI without brackets
	tokPName   // ex:local or ex: ; Text holds the raw prefixed name
	tokString  // "..." or '...'; Text holds the unescaped value
	tokLangTag // @en; Text holds the tag without '@'
	tokInt     // 42, -3
	tokDecimal // 4.5

	// Keywords (case-insensitive, except 'a')
	tokSelect
	tokDistinct
	tokWhere
	tokPrefix
	tokUnion
	tokOptional
	tokFilter
	tokGroup
	tokBy
	tokLimit
	tokAs
	tokBound
	tokRegex
	tokTrue
	tokFalse
	tokA // the rdf:type shorthand
	tokAggregate

	// Operators
	tokEq    // =
	tokNe    // !=
	tokLt    // <
	tokGt    // >
	tokLe    // <=
	tokGe    // >=
	tokAnd   // &&
	tokOr    // ||
	tokBang  // !
	tokDTSep // ^^

	// Punctuation
	tokLBrace // {
	tokRBrace // }
	tokLParen // (
	tokRParen // )
	tokDot    // .
	tokSemi   // ;
	tokComma  // ,
	tokStar   // *
)

// Token is a single lexer token with its kind, text, and byte position.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", tokenKindName(t.Kind), t.Text, t.Pos)
}

var kindNames = map[TokenKind]string{
	tokEOF: "EOF", tokVar: "VAR", tokIRI: "IRI", tokPName: "PNAME", tokString: "STRING",
	tokLangTag: "LANGTAG", tokInt: "INT", tokDecimal: "DECIMAL",
	tokSelect: "SELECT", tokDistinct: "DISTINCT", tokWhere: "WHERE", tokPrefix: "PREFIX",
	tokUnion: "UNION", tokOptional: "OPTIONAL", tokFilter: "FILTER", tokGroup: "GROUP",
	tokBy: "BY", tokLimit: "LIMIT", tokAs: "AS", tokBound: "BOUND", tokRegex: "REGEX",
	tokTrue: "TRUE", tokFalse: "FALSE", tokA: "a", tokAggregate: "AGGREGATE",
	tokEq: "=", tokNe: "!=", tokLt: "<", tokGt: ">", tokLe: "<=", tokGe: ">=",
	tokAnd: "&&", tokOr: "||", tokBang: "!", tokDTSep: "^^",
	tokLBrace: "{", tokRBrace: "}", tokLParen: "(", tokRParen: ")",
	tokDot: ".", tokSemi: ";", tokComma: ",", tokStar: "*",
}

func tokenKindName(k TokenKind) string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "???"
}

// keywords maps uppercase keyword text to token kind.
var keywords = map[string]TokenKind{
	"SELECT":   tokSelect,
	"DISTINCT": tokDistinct,
	"WHERE":    tokWhere,
	"PREFIX":   tokPrefix,
	"UNION":    tokUnion,
	"OPTIONAL": tokOptional,
	"FILTER":   tokFilter,
	"GROUP":    tokGroup,
	"BY":       tokBy,
	"LIMIT":    tokLimit,
	"AS":       tokAs,
	"BOUND":    tokBound,
	"REGEX":    tokRegex,
	"TRUE":     tokTrue,
	"FALSE":    tokFalse,
	"COUNT":    tokAggregate,
	"SUM":      tokAggregate,
	"MIN":      tokAggregate,
	"MAX":      tokAggregate,
	"AVG":      tokAggregate,
	"SAMPLE":   tokAggregate,
}

type lexer struct {
	input  string
	pos    int
	tokens []Token
}

// tokenize converts query text into tokens, terminated by tokEOF.
func tokenize(input string) ([]Token, error) {
	l := &lexer{input: input}
	if err := l.scan(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) scan() error {
	for {
		l.skipWhitespaceAndComments()
		if l.pos >= len(l.input) {
			break
		}

		ch := l.input[l.pos]
		switch {
		case ch == '{':
			l.emit(tokLBrace, "{")
		case ch == '}':
			l.emit(tokRBrace, "}")
		case ch == '(':
			l.emit(tokLParen, "(")
		case ch == ')':
			l.emit(tokRParen, ")")
		case ch == ';':
			l.emit(tokSemi, ";")
		case ch == ',':
			l.emit(tokComma, ",")
		case ch == '*':
			l.emit(tokStar, "*")
		case ch == '=':
			l.emit(tokEq, "=")

		case ch == '.':
			if isDigit(l.peek(1)) {
				l.scanNumber()
			} else {
				l.emit(tokDot, ".")
			}

		case ch == '!':
			if l.peek(1) == '=' {
				l.emitN(tokNe, "!=", 2)
			} else {
				l.emit(tokBang, "!")
			}

		case ch == '&':
			if l.peek(1) != '&' {
				return l.errorf("expected '&&'")
			}
			l.emitN(tokAnd, "&&", 2)

		case ch == '|':
			if l.peek(1) != '|' {
				return l.errorf("expected '||'")
			}
			l.emitN(tokOr, "||", 2)

		case ch == '^':
			if l.peek(1) != '^' {
				return l.errorf("expected '^^'")
			}
			l.emitN(tokDTSep, "^^", 2)

		case ch == '<':
			// <iri>, or the operators <= and <
			if l.scanIRI() {
				continue
			}
			if l.peek(1) == '=' {
				l.emitN(tokLe, "<=", 2)
			} else {
				l.emit(tokLt, "<")
			}

		case ch == '>':
			if l.peek(1) == '=' {
				l.emitN(tokGe, ">=", 2)
			} else {
				l.emit(tokGt, ">")
			}

		case ch == '?' || ch == '$':
			if err := l.scanVar(); err != nil {
				return err
			}

		case ch == '"' || ch == '\'':
			if err := l.scanString(ch); err != nil {
				return err
			}

		case ch == '@':
			l.scanLangTag()

		case isDigit(ch):
			l.scanNumber()

		case (ch == '-' || ch == '+') && (isDigit(l.peek(1)) || (l.peek(1) == '.' && isDigit(l.peek(2)))):
			l.scanNumber()

		case isNameStart(ch) || ch == ':':
			l.scanNameOrKeyword()

		default:
			return l.errorf("unexpected character %q", ch)
		}
	}

	l.tokens = append(l.tokens, Token{Kind: tokEOF, Pos: l.pos})
	return nil
}

func (l *lexer) errorf(format string, args ...any) error {
	return &ParseError{Pos: l.pos, Message: fmt.Sprintf(format, args...)}
}

func (l *lexer) emit(kind TokenKind, text string) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Pos: l.pos})
	l.pos++
}

func (l *lexer) emitN(kind TokenKind, text string, n int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Pos: l.pos})
	l.pos += n
}

// peek returns the byte at pos+offset, or 0 if out of bounds.
func (l *lexer) peek(offset int) byte {
	idx := l.pos + offset
	if idx >= len(l.input) {
		return 0
	}
	return l.input[idx]
}

func (l *lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case isWhitespace(ch):
			l.pos++
		case ch == '#':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// scanIRI tries to read <...>. It returns false without consuming input when
// the text at pos is not an IRI, so '<' can be lexed as an operator.
func (l *lexer) scanIRI() bool {
	end := l.pos + 1
	for end < len(l.input) {
		ch := l.input[end]
		if ch == '>' {
			l.tokens = append(l.tokens, Token{Kind: tokIRI, Text: l.input[l.pos+1 : end], Pos: l.pos})
			l.pos = end + 1
			return true
		}
		if ch <= ' ' || strings.IndexByte("<\"{}|^`\\", ch) >= 0 {
			return false
		}
		end++
	}
	return false
}

func (l *lexer) scanVar() error {
	start := l.pos
	l.pos++ // skip ? or $
	for l.pos < len(l.input) && isNamePart(l.input[l.pos]) && l.input[l.pos] != '.' && l.input[l.pos] != '-' {
		l.pos++
	}
	if l.pos == start+1 {
		return &ParseError{Pos: start, Message: "empty variable name"}
	}
	l.tokens = append(l.tokens, Token{Kind: tokVar, Text: l.input[start+1 : l.pos], Pos: start})
	return nil
}

// scanString scans a single- or double-quoted string with simple escapes.
func (l *lexer) scanString(quote byte) error {
	start := l.pos
	l.pos++ // skip opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			switch l.input[l.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"', '\'':
				b.WriteByte(l.input[l.pos])
			default:
				b.WriteByte('\\')
				b.WriteByte(l.input[l.pos])
			}
			l.pos++
			continue
		}
		if ch == quote {
			l.pos++ // skip closing quote
			l.tokens = append(l.tokens, Token{Kind: tokString, Text: b.String(), Pos: start})
			return nil
		}
		b.WriteByte(ch)
		l.pos++
	}
	return &ParseError{Pos: start, Message: "unterminated string"}
}

func (l *lexer) scanLangTag() {
	start := l.pos
	l.pos++ // skip '@'
	for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) || l.input[l.pos] == '-') {
		l.pos++
	}
	l.tokens = append(l.tokens, Token{Kind: tokLangTag, Text: l.input[start+1 : l.pos], Pos: start})
}

// scanNumber scans an integer or decimal literal with an optional sign.
func (l *lexer) scanNumber() {
	start := l.pos
	if l.input[l.pos] == '-' || l.input[l.pos] == '+' {
		l.pos++
	}
	decimal := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '.' && !decimal && isDigit(l.peek(1)) {
			decimal = true
			l.pos++
			continue
		}
		if !isDigit(ch) {
			break
		}
		l.pos++
	}
	kind := tokInt
	if decimal {
		kind = tokDecimal
	}
	l.tokens = append(l.tokens, Token{Kind: kind, Text: l.input[start:l.pos], Pos: start})
}

// scanNameOrKeyword scans a prefixed name (ex:local) or a keyword.
// A trailing '.' is never part of a name; it terminates the triple.
func (l *lexer) scanNameOrKeyword() {
	start := l.pos
	hasColon := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ':' {
			hasColon = true
			l.pos++
			continue
		}
		if !isNamePart(ch) {
			break
		}
		l.pos++
	}
	for l.pos > start+1 && l.input[l.pos-1] == '.' {
		l.pos--
	}
	text := l.input[start:l.pos]

	if hasColon {
		l.tokens = append(l.tokens, Token{Kind: tokPName, Text: text, Pos: start})
		return
	}
	if text == "a" {
		l.tokens = append(l.tokens, Token{Kind: tokA, Text: text, Pos: start})
		return
	}
	if kind, ok := keywords[strings.ToUpper(text)]; ok {
		l.tokens = append(l.tokens, Token{Kind: kind, Text: strings.ToUpper(text), Pos: start})
		return
	}
	// Unknown bare words are reported by the parser with context.
	l.tokens = append(l.tokens, Token{Kind: tokPName, Text: text, Pos: start})
}

// Character classification helpers.

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameStart(ch byte) bool {
	return ch == '_' || isLetter(ch) || ch >= 0x80
}

func isNamePart(ch byte) bool {
	return isNameStart(ch) || isDigit(ch) || ch == '-' || ch == '.'
}
