// Package formula evaluates the small arithmetic expressions used by
// formula-driven trade actions. The grammar is deliberately tiny:
// numeric literals, the bound variable N (the current bar's percent
// close change), the binary operators + - * /, parentheses, unary
// minus, and the function abs(x).
package formula

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrDivideByZero is returned when evaluation divides by zero.
var ErrDivideByZero = errors.New("formula: division by zero")

// SyntaxError reports an invalid token or malformed expression. Pos is
// the zero-based byte offset into the formula string.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula: %s at offset %d", e.Msg, e.Pos)
}

// Eval parses and evaluates the formula with the variable N bound to n.
// The same (formula, n) pair always yields the same result. Any lexical
// or syntax error, unknown identifier, or division by zero returns a
// non-nil error; callers treat that as "no numeric result".
func Eval(formula string, n float64) (float64, error) {
	p := &parser{src: formula, n: n}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected %q", p.src[p.pos])}
	}
	return v, nil
}

// parser is a recursive-descent evaluator over the formula grammar:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = [ "-" ] primary
//	primary = number | "N" | "abs" "(" expr ")" | "(" expr ")"
type parser struct {
	src string
	pos int
	n   float64
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.term()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.unary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.unary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, ErrDivideByZero
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) unary() (float64, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		v, err := p.primary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.primary()
}

func (p *parser) primary() (float64, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(')'); err != nil {
			return 0, err
		}
		return v, nil

	case c >= '0' && c <= '9' || c == '.':
		return p.number()

	case unicode.IsLetter(rune(c)):
		start := p.pos
		ident := p.ident()
		switch strings.ToLower(ident) {
		case "n":
			return p.n, nil
		case "abs":
			if err := p.expect('('); err != nil {
				return 0, err
			}
			v, err := p.expr()
			if err != nil {
				return 0, err
			}
			if err := p.expect(')'); err != nil {
				return 0, err
			}
			if v < 0 {
				v = -v
			}
			return v, nil
		default:
			return 0, &SyntaxError{Pos: start, Msg: fmt.Sprintf("unknown identifier %q", ident)}
		}

	case p.pos >= len(p.src):
		return 0, &SyntaxError{Pos: p.pos, Msg: "unexpected end of formula"}

	default:
		return 0, &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("unexpected %q", c)}
	}
}

func (p *parser) number() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, &SyntaxError{Pos: start, Msg: fmt.Sprintf("invalid number %q", p.src[start:p.pos])}
	}
	return v, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) expect(want byte) error {
	p.skipSpace()
	if p.peek() != want {
		return &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf("expected %q", want)}
	}
	p.pos++
	return nil
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}
