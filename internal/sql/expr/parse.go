package expr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tuannm99/novamem/internal/record"
)

type tokKind int

const (
	tokWord tokKind = iota
	tokQuoted
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

func isOpChar(r rune) bool { return r == '<' || r == '>' || r == '=' || r == '!' }

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '\'' || ((r == 'b' || r == 'B') && i+1 < len(rs) && rs[i+1] == '\''):
			start := i
			if r != '\'' {
				i++
			}
			end := i + 1
			for end < len(rs) && rs[end] != '\'' {
				end++
			}
			if end >= len(rs) {
				return nil, record.ValueErrorf("unterminated quote in %q", s)
			}
			toks = append(toks, token{kind: tokQuoted, text: string(rs[start : end+1])})
			i = end + 1
		case isOpChar(r):
			start := i
			for i < len(rs) && isOpChar(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokOp, text: string(rs[start:i])})
		default:
			start := i
			for i < len(rs) && !unicode.IsSpace(rs[i]) && rs[i] != '(' && rs[i] != ')' && rs[i] != '\'' && !isOpChar(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[start:i])})
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	src  string
}

// Parse reads a condition. An empty string yields a nil Cond, which matches
// every row.
func Parse(s string) (Cond, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: s}
	c, err := p.cond()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos].text)
	}
	return c, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return record.ValueErrorf("condition %q: %s", p.src, fmt.Sprintf(format, args...))
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) keyword() (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != tokWord {
		return "", false
	}
	return strings.ToLower(t.text), true
}

func (p *parser) cond() (Cond, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		kw, ok := p.keyword()
		if !ok || (kw != "and" && kw != "or") {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Logic{And: kw == "and", Left: left, Right: right}
	}
}

func (p *parser) term() (Cond, error) {
	t, ok := p.peek()
	if !ok {
		return nil, p.errorf("unexpected end")
	}
	if t.kind == tokLParen {
		p.pos++
		c, err := p.cond()
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokRParen {
			return nil, p.errorf("missing ')'")
		}
		p.pos++
		return c, nil
	}

	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	op, err := p.cmpOp()
	if err != nil {
		return nil, err
	}
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return &Compare{Op: op, Left: left, Right: right}, nil
}

func (p *parser) operand() (Operand, error) {
	t, ok := p.peek()
	if !ok {
		return Operand{}, p.errorf("missing operand")
	}
	switch t.kind {
	case tokWord:
		switch strings.ToLower(t.text) {
		case "and", "or", "in", "contains":
			return Operand{}, p.errorf("missing operand before %q", t.text)
		}
		p.pos++
		return Operand{Raw: t.text}, nil
	case tokQuoted:
		p.pos++
		return Operand{Raw: t.text, Quoted: true}, nil
	}
	return Operand{}, p.errorf("unexpected %q", t.text)
}

func (p *parser) cmpOp() (CmpOp, error) {
	t, ok := p.peek()
	if !ok {
		return 0, p.errorf("missing operator")
	}
	var op CmpOp
	switch strings.ToLower(t.text) {
	case "<":
		op = OpLT
	case ">":
		op = OpGT
	case "<=":
		op = OpLE
	case ">=":
		op = OpGE
	case "==", "=":
		op = OpEQ
	case "in":
		op = OpIn
	case "contains":
		op = OpContains
	default:
		return 0, p.errorf("unknown operator %q", t.text)
	}
	p.pos++
	return op, nil
}
