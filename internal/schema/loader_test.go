package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggnav/internal/db"
	"aggnav/internal/domain"
)

func TestParse_SampleSchema(t *testing.T) {
	s, err := Parse(db.SampleSchema)
	require.NoError(t, err)
	assert.Equal(t, "foodmart", s.Name)
	require.Len(t, s.Stars, 4)

	sales, err := s.Star("Sales")
	require.NoError(t, err)
	assert.Equal(t, "sales_fact_1997", sales.Fact.Name)

	family, err := sales.LookupColumn("product_class", "product_family")
	require.NoError(t, err)
	productClass, _ := sales.Table("product_class")
	product, _ := sales.Table("product")
	assert.Equal(t, product, productClass.Parent)
	assert.Equal(t, product, family.Table.Root())

	names := make([]string, 0, len(sales.Aggregates))
	for _, a := range sales.Aggregates {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{
		"agg_c_10_sales_fact_1997",
		"agg_g_ms_pcat_sales_fact_1997",
		"agg_l_05_sales_fact_1997",
		"agg_c_14_sales_fact_1997",
	}, names, "excluded aggregates are dropped and declaration order is kept")

	c14, ok := sales.Aggregate("agg_c_14_sales_fact_1997")
	require.True(t, ok)
	assert.Equal(t, int64(86805), c14.ApproxRowCount)

	l05, _ := sales.Aggregate("agg_l_05_sales_fact_1997")
	for _, l := range l05.Levels {
		assert.False(t, l.Collapsed)
	}

	cc, err := sales.LookupMeasure("[Measures].[Customer Count]")
	require.NoError(t, err)
	assert.Equal(t, domain.AggDistinctCount, cc.Aggregator)

	gender, err := sales.ResolveColumn("Gender.Gender")
	require.NoError(t, err)
	assert.Equal(t, "customer.gender", gender.Expression())

	ragged, err := s.Star("Sales Ragged")
	require.NoError(t, err)
	country, err := ragged.LookupColumn("store_ragged", "store_country")
	require.NoError(t, err)
	assert.True(t, country.Computed())
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`
apiVersion: aggnav/v1
kind: Schema
metadata: {name: x}
spec:
  stars:
    - name: S
      fact: f
      bogus: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestParse_WrongKind(t *testing.T) {
	_, err := Parse([]byte("apiVersion: aggnav/v1\nkind: Cube\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected kind")

	_, err = Parse([]byte("apiVersion: v0\nkind: Schema\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported apiVersion")
}

const minimalStar = `
apiVersion: aggnav/v1
kind: Schema
metadata: {name: mini}
spec:
  stars:
    - name: Sales
      fact: sales_fact_1997
      tables:
        - name: sales_fact_1997
          columns:
            - {name: unit_sales, type: numeric}
        - name: customer
          parent: sales_fact_1997
          parentKey: customer_id
          key: customer_id
          columns:
            - {name: gender}
      measures:
        - {name: Unit Sales, column: unit_sales, aggregator: sum}
      aggregates:
        - name: agg_bad
          columns: [gender, fact_count]
          levels:
            - {table: customer, column: gender}
          measures:
            - {measure: Unit Sales, column: unit_sales}
`

func TestParse_MeasureColumnMissingFailsFast(t *testing.T) {
	_, err := Parse([]byte(minimalStar))
	require.Error(t, err)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "agg_bad", cfgErr.Identifier)
	assert.Contains(t, cfgErr.Message, "unit_sales")
}

func TestParse_UnknownParentTable(t *testing.T) {
	_, err := Parse([]byte(`
apiVersion: aggnav/v1
kind: Schema
metadata: {name: mini}
spec:
  stars:
    - name: Sales
      fact: f
      tables:
        - name: f
          columns: []
        - name: d
          parent: nope
          parentKey: d_id
          key: d_id
          columns: []
      measures: []
`))
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "d", cfgErr.Identifier)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foodmart.yaml")
	require.NoError(t, os.WriteFile(path, db.SampleSchema, 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Stars, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
