/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrSyntax = errors.New("syntax error")

// Aggregate functions.
const (
	FuncAvg   = "avg"
	FuncSum   = "sum"
	FuncMin   = "min"
	FuncMax   = "max"
	FuncCount = "count"
)

var aggregates = map[string]struct{}{FuncAvg: {}, FuncSum: {}, FuncMin: {}, FuncMax: {}, FuncCount: {}}

// SelectItem is one entry of the select list: "*", a column, or an aggregate over a column or "*".
type SelectItem struct {
	Star   bool
	Column string
	// Func is the lower-cased aggregate function, empty for a plain column.
	Func  string
	Alias string
}

// Name returns the name of the output column.
func (i SelectItem) Name() string {
	switch {
	case i.Alias != "":
		return i.Alias
	case i.Func != "":
		return i.Func + "(" + i.Column + ")"
	case i.Star:
		return "*"
	default:
		return i.Column
	}
}

func (i SelectItem) isAggregate() bool {
	return i.Func != ""
}

type OrderItem struct {
	Column string
	Desc   bool
}

// Statement is a parsed SELECT statement.
type Statement struct {
	Items   []SelectItem
	Table   string
	GroupBy []string
	OrderBy []OrderItem
	// Limit is -1 when absent.
	Limit int
}

// IsAggregate tells whether the statement groups rows.
func (s *Statement) IsAggregate() bool {
	if len(s.GroupBy) > 0 {
		return true
	}
	for _, it := range s.Items {
		if it.isAggregate() {
			return true
		}
	}
	return false
}

func (s *Statement) String() string {
	items := make([]string, len(s.Items))
	for i, it := range s.Items {
		items[i] = it.Name()
		if it.Alias != "" {
			items[i] = SelectItem{Star: it.Star, Column: it.Column, Func: it.Func}.Name() + " AS " + it.Alias
		}
	}
	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(items, ", ") + " FROM " + s.Table)
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		order := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			order[i] = o.Column
			if o.Desc {
				order[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(order, ", "))
	}
	if s.Limit >= 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(s.Limit))
	}
	return b.String()
}

type parser struct {
	tokens []token
	pos    int
}

// Parse parses "SELECT items FROM table [GROUP BY cols] [ORDER BY col [ASC|DESC], ...] [LIMIT n] [;]". Keywords
// and identifiers are case-insensitive.
func Parse(text string) (*Statement, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, err)
	}
	p := &parser{tokens: tokens}
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, err)
	}
	return stmt, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if t := p.peek(); t.kind == tokenKeyword && t.text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return fmt.Errorf("expected %s, found %s", kw, p.peek())
	}
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s, found %s", what, t)
	}
	return t, nil
}

func (p *parser) parseSelect() (*Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &Statement{Limit: -1}
	for {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if p.peek().kind != tokenComma {
			break
		}
		p.next()
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	t, err := p.expect(tokenIdent, "table name")
	if err != nil {
		return nil, err
	}
	stmt.Table = t.text

	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		if stmt.GroupBy, err = p.parseColumns(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			o, err := p.parseOrderItem()
			if err != nil {
				return nil, err
			}
			stmt.OrderBy = append(stmt.OrderBy, o)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if p.acceptKeyword("LIMIT") {
		t, err := p.expect(tokenNumber, "limit")
		if err != nil {
			return nil, err
		}
		if stmt.Limit, err = strconv.Atoi(t.text); err != nil {
			return nil, fmt.Errorf("invalid limit %s", t)
		}
	}
	if p.peek().kind == tokenSemicolon {
		p.next()
	}
	if t := p.peek(); t.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %s at position %d", t, t.pos)
	}
	return stmt, nil
}

func (p *parser) parseItem() (SelectItem, error) {
	t := p.next()
	var item SelectItem
	switch t.kind {
	case tokenStar:
		return SelectItem{Star: true}, nil
	case tokenIdent:
		if p.peek().kind != tokenLParen {
			item = SelectItem{Column: t.text}
			break
		}
		fn := strings.ToLower(t.text)
		if _, ok := aggregates[fn]; !ok {
			return item, fmt.Errorf("unsupported function %s", t)
		}
		p.next()
		arg := p.next()
		switch {
		case arg.kind == tokenStar && fn == FuncCount:
			item = SelectItem{Func: fn, Column: "*", Star: true}
		case arg.kind == tokenIdent:
			item = SelectItem{Func: fn, Column: arg.text}
		default:
			return item, fmt.Errorf("invalid argument %s of %s", arg, fn)
		}
		if _, err := p.expect(tokenRParen, ")"); err != nil {
			return item, err
		}
	default:
		return item, fmt.Errorf("expected column or aggregate, found %s", t)
	}
	if p.acceptKeyword("AS") {
		alias, err := p.expect(tokenIdent, "alias")
		if err != nil {
			return item, err
		}
		item.Alias = alias.text
	}
	return item, nil
}

func (p *parser) parseColumns() ([]string, error) {
	var cols []string
	for {
		t, err := p.expect(tokenIdent, "column")
		if err != nil {
			return nil, err
		}
		cols = append(cols, t.text)
		if p.peek().kind != tokenComma {
			return cols, nil
		}
		p.next()
	}
}

// parseOrderItem accepts a column, an alias or an aggregate such as avg(Price_usd).
func (p *parser) parseOrderItem() (OrderItem, error) {
	var o OrderItem
	t, err := p.expect(tokenIdent, "column")
	if err != nil {
		return o, err
	}
	o.Column = t.text
	if p.peek().kind == tokenLParen {
		p.next()
		arg := p.next()
		if arg.kind != tokenIdent && arg.kind != tokenStar {
			return o, fmt.Errorf("invalid argument %s of %s", arg, t.text)
		}
		if _, err := p.expect(tokenRParen, ")"); err != nil {
			return o, err
		}
		o.Column = strings.ToLower(t.text) + "(" + arg.text + ")"
	}
	if p.acceptKeyword("DESC") {
		o.Desc = true
	} else {
		p.acceptKeyword("ASC")
	}
	return o, nil
}
