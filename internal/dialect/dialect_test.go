package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggnav/internal/domain"
)

func TestGet(t *testing.T) {
	require.Equal(t, MySQLDialect, Get("mysql"))
	require.Equal(t, PostgresDialect, Get("PostgreSQL"))
	require.Equal(t, SQLiteDialect, Get("sqlite3"))
	require.Nil(t, Get("db2"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`store`", MySQLDialect.QuoteIdent("store"))
	assert.Equal(t, "`Store Name`", MySQLDialect.QuoteIdent("Store Name"))
	assert.Equal(t, `"store"`, PostgresDialect.QuoteIdent("store"))
	assert.Equal(t, `"store_id"`, DerbyDialect.QuoteIdent("store_id"))
	assert.Equal(t, `"order"`, PostgresDialect.QuoteIdent("order"))
	assert.Equal(t, `"a""b"`, PostgresDialect.QuoteIdent(`a"b`))
	assert.Equal(t, "*", MySQLDialect.QuoteIdent("*"))

	assert.Equal(t, "store", SQLiteDialect.QuoteIdent("store"))
	assert.Equal(t, `"order"`, SQLiteDialect.QuoteIdent("order"))
	assert.Equal(t, `"Store Name"`, DuckDBDialect.QuoteIdent("Store Name"))
}

func TestQuoteColumn_AlwaysQuote(t *testing.T) {
	assert.Equal(t, "`store`.`store_state`", MySQLDialect.QuoteColumn("store", "store_state"))
	assert.Equal(t, `"store"."store_state"`, PostgresDialect.QuoteColumn("store", "store_state"))
	assert.Equal(t, "store.store_state", SQLiteDialect.QuoteColumn("store", "store_state"))
}

func TestTableRef(t *testing.T) {
	assert.Equal(t, "`store` as `store`", MySQLDialect.TableRef("store", "store"))
	assert.Equal(t, "store as store", SQLiteDialect.TableRef("store", "store"))
	assert.Equal(t, "store store", OracleDialect.TableRef("store", "store"))
}

func TestFormatLiteral(t *testing.T) {
	assert.Equal(t, "'F'", GenericDialect.FormatLiteral(domain.String("F")))
	assert.Equal(t, "'O''Brien'", GenericDialect.FormatLiteral(domain.String("O'Brien")))
	assert.Equal(t, "1997", GenericDialect.FormatLiteral(domain.Int(1997)))
	assert.Equal(t, "null", GenericDialect.FormatLiteral(domain.Null))
}

func TestNullOrder(t *testing.T) {
	assert.Equal(t, "ISNULL(store.store_country) ASC, store.store_country ASC",
		MySQLDialect.NullOrder("store.store_country"))
	assert.Equal(t, "store.store_country IS NULL ASC, store.store_country ASC",
		SQLiteDialect.NullOrder("store.store_country"))
}
