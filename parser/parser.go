package parser

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// parser is the internal recursive-descent parser. Use the exported Parse
// function as the public entry point.
type parser struct {
	lexer *Lexer
	cur   Token
}

// Parse parses a single SQL statement from input.
func Parse(input string) (Statement, error) {
	p := &parser{lexer: NewLexer(input)}
	p.next()

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	// Allow an optional trailing semicolon.
	if p.cur.Type == TokenSemicolon {
		p.next()
	}
	if p.cur.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected %q after statement at position %d",
			p.cur.Literal, p.cur.Pos)
	}
	return stmt, nil
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func (p *parser) next() {
	p.cur = p.lexer.NextToken()
}

func (p *parser) expect(t TokenType) (Token, error) {
	tok := p.cur
	if tok.Type != t {
		if tok.Type == TokenEOF {
			return tok, fmt.Errorf("expected %s, got end of input", t)
		}
		return tok, fmt.Errorf("expected %s, got %q at position %d",
			t, tok.Literal, tok.Pos)
	}
	p.next()
	return tok, nil
}

// accept consumes the current token if it has type t.
func (p *parser) accept(t TokenType) bool {
	if p.cur.Type != t {
		return false
	}
	p.next()
	return true
}

func (p *parser) unexpected() error {
	if p.cur.Type == TokenEOF {
		return fmt.Errorf("unexpected end of input")
	}
	return fmt.Errorf("unexpected %q at position %d", p.cur.Literal, p.cur.Pos)
}

func (p *parser) ident() (string, error) {
	tok, err := p.expect(TokenIdent)
	return tok.Literal, err
}

// ifExists parses an optional IF EXISTS, or IF NOT EXISTS when not is set.
func (p *parser) ifExists(not bool) (bool, error) {
	if !p.accept(TokenIf) {
		return false, nil
	}
	if not {
		if _, err := p.expect(TokenNot); err != nil {
			return false, err
		}
	}
	if _, err := p.expect(TokenExists); err != nil {
		return false, err
	}
	return true, nil
}

// parenIdent parses "( ident )".
func (p *parser) parenIdent() (string, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return "", err
	}
	name, err := p.ident()
	if err != nil {
		return "", err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return "", err
	}
	return name, nil
}

// indexTarget parses "ON table (column)".
func (p *parser) indexTarget() (table, column string, err error) {
	if _, err = p.expect(TokenOn); err != nil {
		return "", "", err
	}
	if table, err = p.ident(); err != nil {
		return "", "", err
	}
	column, err = p.parenIdent()
	return table, column, err
}

// -------------------------------------------------------------------------
// Statement parsing
// -------------------------------------------------------------------------

func (p *parser) parseStatement() (Statement, error) {
	switch p.cur.Type {
	case TokenCreate:
		p.next()
		switch p.cur.Type {
		case TokenTable:
			return p.parseCreateTable()
		case TokenIndex:
			return p.parseCreateIndex()
		}
		return nil, p.unexpected()
	case TokenDrop:
		p.next()
		switch p.cur.Type {
		case TokenTable:
			return p.parseDropTable()
		case TokenIndex:
			return p.parseDropIndex()
		}
		return nil, p.unexpected()
	case TokenInsert:
		return p.parseInsert()
	case TokenSelect:
		return p.parseSelect()
	case TokenUpdate:
		return p.parseUpdate()
	case TokenDelete:
		return p.parseDelete()
	case TokenShow:
		return p.parseShow()
	default:
		return nil, p.unexpected()
	}
}

func (p *parser) parseCreateTable() (*CreateTableStmt, error) {
	p.next() // skip TABLE
	ifNotExists, err := p.ifExists(true)
	if err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	stmt := &CreateTableStmt{Name: name, IfNotExists: ifNotExists}
	var tableKey string
	for {
		if p.cur.Type == TokenPrimary {
			// Table constraint: PRIMARY KEY (col)
			p.next()
			if _, err := p.expect(TokenKey); err != nil {
				return nil, err
			}
			if tableKey != "" {
				return nil, fmt.Errorf("multiple primary keys are not allowed")
			}
			if tableKey, err = p.parenIdent(); err != nil {
				return nil, err
			}
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if !p.accept(TokenComma) {
			break
		}
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	pkCount := 0
	for _, col := range stmt.Columns {
		if col.PrimaryKey {
			pkCount++
		}
	}
	if tableKey != "" {
		i := slices.IndexFunc(stmt.Columns, func(c ColumnDef) bool { return c.Name == tableKey })
		if i < 0 {
			return nil, fmt.Errorf("primary key column %q is not defined", tableKey)
		}
		if !stmt.Columns[i].PrimaryKey {
			stmt.Columns[i].PrimaryKey = true
			pkCount++
		}
	}
	if pkCount > 1 {
		return nil, fmt.Errorf("multiple primary keys are not allowed")
	}
	return stmt, nil
}

func (p *parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.ident()
	if err != nil {
		return ColumnDef{}, err
	}
	if p.cur.Type != TokenIdent {
		return ColumnDef{}, fmt.Errorf("expected data type for column %q, got %q at position %d",
			name, p.cur.Literal, p.cur.Pos)
	}
	col := ColumnDef{Name: name, DataType: strings.ToUpper(p.cur.Literal)}
	p.next()

	if p.accept(TokenPrimary) {
		if _, err := p.expect(TokenKey); err != nil {
			return ColumnDef{}, err
		}
		col.PrimaryKey = true
	}
	return col, nil
}

func (p *parser) parseDropTable() (*DropTableStmt, error) {
	p.next() // skip TABLE
	ifExists, err := p.ifExists(false)
	if err != nil {
		return nil, err
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	return &DropTableStmt{Name: name, IfExists: ifExists}, nil
}

func (p *parser) parseCreateIndex() (*CreateIndexStmt, error) {
	p.next() // skip INDEX
	ifNotExists, err := p.ifExists(true)
	if err != nil {
		return nil, err
	}
	table, column, err := p.indexTarget()
	if err != nil {
		return nil, err
	}
	return &CreateIndexStmt{Table: table, Column: column, IfNotExists: ifNotExists}, nil
}

func (p *parser) parseDropIndex() (*DropIndexStmt, error) {
	p.next() // skip INDEX
	ifExists, err := p.ifExists(false)
	if err != nil {
		return nil, err
	}
	table, column, err := p.indexTarget()
	if err != nil {
		return nil, err
	}
	return &DropIndexStmt{Table: table, Column: column, IfExists: ifExists}, nil
}

func (p *parser) parseInsert() (*InsertStmt, error) {
	p.next() // skip INSERT
	if _, err := p.expect(TokenInto); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	stmt := &InsertStmt{Table: table}

	if p.accept(TokenLParen) {
		for {
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if !p.accept(TokenComma) {
				break
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokenValues); err != nil {
		return nil, err
	}
	for {
		if _, err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		var row []any
		for {
			v, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
			if !p.accept(TokenComma) {
				break
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		if stmt.Columns != nil && len(row) != len(stmt.Columns) {
			return nil, fmt.Errorf("INSERT has %d target columns but %d values", len(stmt.Columns), len(row))
		}
		stmt.Values = append(stmt.Values, row)
		if !p.accept(TokenComma) {
			break
		}
	}
	return stmt, nil
}

func (p *parser) parseSelect() (*SelectStmt, error) {
	p.next() // skip SELECT
	stmt := &SelectStmt{}

	switch {
	case p.accept(TokenStar):
	case p.accept(TokenCount):
		if _, err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenStar); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		stmt.Count = true
	default:
		for {
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if !p.accept(TokenComma) {
				break
			}
		}
	}

	if _, err := p.expect(TokenFrom); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	stmt.Table = table
	if stmt.Where, err = p.parseWhere(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseUpdate() (*UpdateStmt, error) {
	p.next() // skip UPDATE
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenSet); err != nil {
		return nil, err
	}

	stmt := &UpdateStmt{Table: table}
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		if tok, err := p.expect(TokenEq); err != nil {
			return nil, err
		} else if tok.Literal != "=" {
			return nil, fmt.Errorf("expected = in SET, got %q at position %d", tok.Literal, tok.Pos)
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Sets = append(stmt.Sets, SetClause{Column: col, Value: v})
		if !p.accept(TokenComma) {
			break
		}
	}
	if stmt.Where, err = p.parseWhere(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseDelete() (*DeleteStmt, error) {
	p.next() // skip DELETE
	if _, err := p.expect(TokenFrom); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{Table: table}
	if stmt.Where, err = p.parseWhere(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseShow() (Statement, error) {
	p.next() // skip SHOW
	switch {
	case p.accept(TokenTables):
		return &ShowTablesStmt{}, nil
	case p.accept(TokenIndex):
		table, column, err := p.indexTarget()
		if err != nil {
			return nil, err
		}
		return &ShowIndexStmt{Table: table, Column: column}, nil
	case p.cur.Type == TokenIdent && strings.EqualFold(p.cur.Literal, "INDEXES"):
		p.next()
		if _, err := p.expect(TokenOn); err != nil {
			return nil, err
		}
		table, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &ShowIndexesStmt{Table: table}, nil
	}
	return nil, p.unexpected()
}

// -------------------------------------------------------------------------
// WHERE clauses and literals
// -------------------------------------------------------------------------

// parseWhere parses an optional WHERE clause: conditions joined by AND.
func (p *parser) parseWhere() ([]Condition, error) {
	if !p.accept(TokenWhere) {
		return nil, nil
	}
	var conds []Condition
	for {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
		if !p.accept(TokenAnd) {
			return conds, nil
		}
	}
}

func (p *parser) parseCondition() (Condition, error) {
	col, err := p.ident()
	if err != nil {
		return Condition{}, err
	}

	if p.accept(TokenIs) {
		op := "="
		if p.accept(TokenNot) {
			op = "!="
		}
		if _, err := p.expect(TokenNull); err != nil {
			return Condition{}, err
		}
		return Condition{Column: col, Op: op, Value: nil}, nil
	}

	switch p.cur.Type {
	case TokenEq, TokenNotEq, TokenLt, TokenLtEq, TokenGt, TokenGtEq:
	default:
		return Condition{}, fmt.Errorf("expected comparison operator after %q, got %q at position %d",
			col, p.cur.Literal, p.cur.Pos)
	}
	op := p.cur.Literal
	p.next()

	v, err := p.parseLiteral()
	if err != nil {
		return Condition{}, err
	}
	return Condition{Column: col, Op: op, Value: v}, nil
}

// parseLiteral parses a constant: a number (optionally negated), a
// string, TRUE, FALSE, or NULL.
func (p *parser) parseLiteral() (any, error) {
	tok := p.cur
	switch tok.Type {
	case TokenMinus:
		p.next()
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, fmt.Errorf("cannot negate %T at position %d", v, tok.Pos)
	case TokenIntLit:
		p.next()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %s out of range at position %d", tok.Literal, tok.Pos)
		}
		return n, nil
	case TokenFloatLit:
		p.next()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %s at position %d", tok.Literal, tok.Pos)
		}
		return f, nil
	case TokenStrLit:
		p.next()
		return tok.Literal, nil
	case TokenTrue:
		p.next()
		return true, nil
	case TokenFalse:
		p.next()
		return false, nil
	case TokenNull:
		p.next()
		return nil, nil
	}
	return nil, p.unexpected()
}
