package dialect

import "strings"

// DialectMap holds the registered dialects.
var DialectMap = map[Type]*Dialect{
	Generic:  GenericDialect,
	MySQL:    MySQLDialect,
	Postgres: PostgresDialect,
	SQLite:   SQLiteDialect,
	DuckDB:   DuckDBDialect,
	Oracle:   OracleDialect,
	Derby:    DerbyDialect,
}

// Get returns the dialect for name, or nil if not found. Common aliases are accepted.
func Get(name string) *Dialect {
	name = strings.ToLower(strings.TrimSpace(name))
	if d, ok := DialectMap[Type(name)]; ok {
		return d
	}
	switch name {
	case "postgresql", "pg":
		return PostgresDialect
	case "sqlite3":
		return SQLiteDialect
	case "mariadb":
		return MySQLDialect
	}
	return nil
}

// GenericDialect is an ANSI-like default without row-value IN.
var GenericDialect = &Dialect{
	Type:           Generic,
	IdentQuoteChar: '"',
	TableAliasAs:   true,
}

// MySQLDialect defines the dialect for MySQL.
var MySQLDialect = &Dialect{
	Type:           MySQL,
	IdentQuoteChar: '`',
	AlwaysQuote:    true,
	TableAliasAs:   true,
	RowValueIn:     true,
	IsNullFunc:     true,
}

// PostgresDialect defines the dialect for PostgreSQL.
var PostgresDialect = &Dialect{
	Type:           Postgres,
	IdentQuoteChar: '"',
	AlwaysQuote:    true,
	TableAliasAs:   true,
	RowValueIn:     true,
}

// SQLiteDialect defines the dialect for SQLite.
var SQLiteDialect = &Dialect{
	Type:           SQLite,
	IdentQuoteChar: '"',
	TableAliasAs:   true,
}

// DuckDBDialect defines the dialect for DuckDB.
var DuckDBDialect = &Dialect{
	Type:           DuckDB,
	IdentQuoteChar: '"',
	TableAliasAs:   true,
}

// OracleDialect defines the dialect for Oracle, which rejects "as" before table aliases.
var OracleDialect = &Dialect{
	Type:           Oracle,
	IdentQuoteChar: '"',
	RowValueIn:     true,
}

// DerbyDialect defines the dialect for Apache Derby.
var DerbyDialect = &Dialect{
	Type:           Derby,
	IdentQuoteChar: '"',
	AlwaysQuote:    true,
	TableAliasAs:   true,
}
