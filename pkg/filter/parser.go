package filter

import (
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Parse compiles a SQL-like filter string into an Expr tree (spec §4.8),
// e.g. `category = 'shoes' AND (price < 100 OR on_sale = true)`.
//
// Grammar (lowest to highest precedence):
//
//	expr       := orExpr
//	orExpr     := andExpr ( OR andExpr )*
//	andExpr    := unary ( AND unary )*
//	unary      := NOT unary | primary
//	primary    := '(' expr ')' | EXISTS '(' ident ')' | comparison
//	comparison := ident ( op literal
//	                     | IN '(' literal (',' literal)* ')'
//	                     | NIN '(' literal (',' literal)* ')'
//	                     | CONTAINS literal )
func Parse(s string) (*Expr, error) {
	p := &parser{lex: newLexer(s)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, vcerrors.New("filter_parse", vcerrors.KindInvalidArgument, nil).WithContext("unexpected", p.tok.text)
	}
	return expr, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.tok.kind != k {
		return token{}, vcerrors.New("filter_parse", vcerrors.KindInvalidArgument, nil).WithContext("got", p.tok.text)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*Expr{left}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Or(children...), nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []*Expr{left}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return And(children...), nil
}

func (p *parser) parseUnary() (*Expr, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Expr, error) {
	switch p.tok.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokExists:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		field, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return Exists(field.text), nil
	case tokIdent:
		return p.parseComparison()
	default:
		return nil, vcerrors.New("filter_parse", vcerrors.KindInvalidArgument, nil).WithContext("got", p.tok.text)
	}
}

func (p *parser) parseComparison() (*Expr, error) {
	field, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}

	switch p.tok.kind {
	case tokOp:
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return comparisonExpr(field.text, op, val)
	case tokIn, tokNin:
		isNin := p.tok.kind == tokNin
		if err := p.advance(); err != nil {
			return nil, err
		}
		vals, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		if isNin {
			return Nin(field.text, vals...), nil
		}
		return In(field.text, vals...), nil
	case tokContains:
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Contains(field.text, val), nil
	default:
		return nil, vcerrors.New("filter_parse", vcerrors.KindInvalidArgument, nil).WithContext("got", p.tok.text)
	}
}

func comparisonExpr(field, op string, val record.Value) (*Expr, error) {
	switch op {
	case "=":
		return Eq(field, val), nil
	case "!=":
		return Ne(field, val), nil
	case ">":
		return Gt(field, val), nil
	case ">=":
		return Gte(field, val), nil
	case "<":
		return Lt(field, val), nil
	case "<=":
		return Lte(field, val), nil
	default:
		return nil, vcerrors.New("filter_parse", vcerrors.KindInvalidArgument, nil).WithContext("op", op)
	}
}

func (p *parser) parseLiteral() (record.Value, error) {
	switch p.tok.kind {
	case tokString:
		v := record.String(p.tok.text)
		return v, p.advance()
	case tokNumber:
		n, err := parseNumberLiteral(p.tok.text)
		if err != nil {
			return record.Value{}, err
		}
		return record.Number(n), p.advance()
	case tokBool:
		v := record.Bool(p.tok.text == "TRUE" || p.tok.text == "true")
		return v, p.advance()
	default:
		return record.Value{}, vcerrors.New("filter_parse", vcerrors.KindInvalidArgument, nil).WithContext("got", p.tok.text)
	}
}

func (p *parser) parseLiteralList() ([]record.Value, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var vals []record.Value
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return vals, nil
}
