// Package dialect describes the SQL syntax differences between target databases.
package dialect

import (
	"strings"

	"aggnav/internal/domain"
)

// Type names a registered dialect.
type Type string

const (
	Generic  Type = "generic"
	MySQL    Type = "mysql"
	Postgres Type = "postgres"
	SQLite   Type = "sqlite"
	DuckDB   Type = "duckdb"
	Oracle   Type = "oracle"
	Derby    Type = "derby"
)

// Dialect defines the capabilities and syntax variations for a SQL target.
type Dialect struct {
	Type Type

	// Identifier quoting. Safe identifiers stay bare unless AlwaysQuote is set.
	IdentQuoteChar byte
	AlwaysQuote    bool

	// TableAliasAs controls "t as t" versus "t t" in FROM.
	TableAliasAs bool

	// RowValueIn allows (a, b) in ((1, 2), (3, 4)) for compound predicates.
	RowValueIn bool

	// IsNullFunc renders ISNULL(x) in ORDER BY instead of x IS NULL.
	IsNullFunc bool
}

// QuoteIdent quotes an identifier when the dialect always quotes or when it is not a
// plain lower-case name.
func (d *Dialect) QuoteIdent(s string) string {
	if s == "*" || d.IdentQuoteChar == 0 {
		return s
	}
	if !d.AlwaysQuote && isSafeIdent(s) {
		return s
	}
	q := string(d.IdentQuoteChar)
	return q + strings.ReplaceAll(s, q, q+q) + q
}

// QuoteColumn renders table.column.
func (d *Dialect) QuoteColumn(table, column string) string {
	return d.QuoteIdent(table) + "." + d.QuoteIdent(column)
}

// ColumnExpr renders a star column: plain columns are quoted, key expressions are raw.
func (d *Dialect) ColumnExpr(c *domain.Column) string {
	if c.Computed() {
		return c.Expr
	}
	return d.QuoteColumn(c.Table.Name, c.Name)
}

// TableRef renders a FROM item.
func (d *Dialect) TableRef(table, alias string) string {
	if d.TableAliasAs {
		return d.QuoteIdent(table) + " as " + d.QuoteIdent(alias)
	}
	return d.QuoteIdent(table) + " " + d.QuoteIdent(alias)
}

// FormatLiteral renders a literal independent of locale: strings quoted, numbers raw.
func (d *Dialect) FormatLiteral(l domain.Literal) string {
	switch {
	case l.Null:
		return "null"
	case l.Numeric:
		return l.Text
	default:
		return "'" + strings.ReplaceAll(l.Text, "'", "''") + "'"
	}
}

// NullOrder renders the ORDER BY items that sort expr with nulls after values.
func (d *Dialect) NullOrder(expr string) string {
	if d.IsNullFunc {
		return "ISNULL(" + expr + ") ASC, " + expr + " ASC"
	}
	return expr + " IS NULL ASC, " + expr + " ASC"
}

// isSafeIdent reports whether s can be written without quotes.
func isSafeIdent(s string) bool {
	if s == "" || reserved[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var reserved = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"by": true, "and": true, "or": true, "in": true, "as": true, "table": true,
	"user": true, "count": true, "distinct": true, "null": true, "is": true,
}
