package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aggnav/internal/dialect"
	"aggnav/internal/domain"
	"aggnav/internal/navigator"
	"aggnav/internal/testutil"
)

func plan(t *testing.T, star *domain.Star, cols []*domain.Column, compound *domain.Predicate, measureNames ...string) *navigator.Plan {
	t.Helper()
	b := navigator.Batch{Star: star, Columns: cols, Compound: compound}
	for _, n := range measureNames {
		m, err := star.LookupMeasure(n)
		require.NoError(t, err)
		b.Measures = append(b.Measures, m)
	}
	p, err := navigator.New(nil).Navigate(b)
	require.NoError(t, err)
	return p
}

func lits(values ...string) []domain.Literal {
	out := make([]domain.Literal, len(values))
	for i, v := range values {
		out[i] = domain.String(v)
	}
	return out
}

func TestSegmentSQL_DistinctCountOnFact(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	gender := testutil.Column(t, sales, "customer", "gender")
	p := plan(t, sales, []*domain.Column{gender}, nil, "Customer Count")

	got, err := New(dialect.SQLiteDialect, false).SegmentSQL(p, [][]domain.Literal{lits("F")}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"select customer.gender as c0, count(distinct sales_fact_1997.customer_id) as m0"+
			" from sales_fact_1997 as sales_fact_1997, customer as customer"+
			" where sales_fact_1997.customer_id = customer.customer_id and customer.gender = 'F'"+
			" group by customer.gender",
		got)
}

func TestSegmentSQL_PrettyAggregate(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	gender := testutil.Column(t, sales, "customer", "gender")
	p := plan(t, sales, []*domain.Column{gender}, nil, "Unit Sales")

	got, err := New(dialect.SQLiteDialect, true).SegmentSQL(p, [][]domain.Literal{lits("F")}, nil)
	require.NoError(t, err)
	assert.Equal(t, `select
    agg_g_ms_pcat_sales_fact_1997.gender as c0,
    sum(agg_g_ms_pcat_sales_fact_1997.unit_sales) as m0
from
    agg_g_ms_pcat_sales_fact_1997 as agg_g_ms_pcat_sales_fact_1997
where
    agg_g_ms_pcat_sales_fact_1997.gender = 'F'
group by
    agg_g_ms_pcat_sales_fact_1997.gender`, got)
}

func TestSegmentSQL_JoinBackWithInList(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	cols := []*domain.Column{
		testutil.Column(t, sales, "store", "store_state"),
		testutil.Column(t, sales, "customer", "gender"),
	}
	p := plan(t, sales, cols, nil, "Unit Sales", "Store Sales")

	got, err := New(dialect.SQLiteDialect, false).SegmentSQL(p, [][]domain.Literal{lits("OR", "CA"), lits("F")}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"select store.store_state as c0, customer.gender as c1,"+
			" sum(agg_l_05_sales_fact_1997.unit_sales) as m0, sum(agg_l_05_sales_fact_1997.store_sales) as m1"+
			" from agg_l_05_sales_fact_1997 as agg_l_05_sales_fact_1997, store as store, customer as customer"+
			" where agg_l_05_sales_fact_1997.store_id = store.store_id and store.store_state in ('CA', 'OR')"+
			" and agg_l_05_sales_fact_1997.customer_id = customer.customer_id and customer.gender = 'F'"+
			" group by store.store_state, customer.gender",
		got)
}

func TestSegmentSQL_JoinPathBeforeEachPredicate(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	cols := []*domain.Column{
		testutil.Column(t, sales, "store", "store_state"),
		testutil.Column(t, sales, "customer", "gender"),
	}
	p := plan(t, sales, cols, nil, "Unit Sales", "Store Sales")

	got, err := New(dialect.MySQLDialect, false).SegmentSQL(p, [][]domain.Literal{lits("CA", "OR"), nil}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"select `store`.`store_state` as `c0`, `customer`.`gender` as `c1`,"+
			" sum(`agg_l_05_sales_fact_1997`.`unit_sales`) as `m0`, sum(`agg_l_05_sales_fact_1997`.`store_sales`) as `m1`"+
			" from `agg_l_05_sales_fact_1997` as `agg_l_05_sales_fact_1997`, `store` as `store`, `customer` as `customer`"+
			" where `agg_l_05_sales_fact_1997`.`store_id` = `store`.`store_id`"+
			" and `store`.`store_state` in ('CA', 'OR')"+
			" and `agg_l_05_sales_fact_1997`.`customer_id` = `customer`.`customer_id`"+
			" group by `store`.`store_state`, `customer`.`gender`",
		got)
}

func TestSegmentSQL_ExactMatchHasNoGroupBy(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	cols := []*domain.Column{
		testutil.Column(t, sales, "time_by_day", "the_year"),
		testutil.Column(t, sales, "time_by_day", "quarter"),
		testutil.Column(t, sales, "time_by_day", "month_of_year"),
	}
	p := plan(t, sales, cols, nil, "Customer Count")

	got, err := New(dialect.SQLiteDialect, false).SegmentSQL(p, [][]domain.Literal{
		{domain.Int(1997)}, lits("Q1"), {domain.Int(1)},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"select agg_c_10_sales_fact_1997.the_year as c0, agg_c_10_sales_fact_1997.quarter as c1,"+
			" agg_c_10_sales_fact_1997.month_of_year as c2, agg_c_10_sales_fact_1997.customer_count as m0"+
			" from agg_c_10_sales_fact_1997 as agg_c_10_sales_fact_1997"+
			" where agg_c_10_sales_fact_1997.the_year = 1997 and agg_c_10_sales_fact_1997.quarter = 'Q1'"+
			" and agg_c_10_sales_fact_1997.month_of_year = 1",
		got)
}

func TestSegmentSQL_CompoundPredicate(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	family := testutil.Column(t, sales, "product_class", "product_family")
	compound := testutil.YearQuarterMonth(t, sales, [3]string{"1997", "Q1", "1"}, [3]string{"1997", "Q3", "7"})
	p := plan(t, sales, []*domain.Column{family}, &compound, "Unit Sales")
	values := [][]domain.Literal{lits("Food", "Drink")}

	const where = " where sales_fact_1997.product_id = product.product_id" +
		" and product.product_class_id = product_class.product_class_id" +
		" and product_class.product_family in ('Drink', 'Food')" +
		" and sales_fact_1997.time_id = time_by_day.time_id and "

	tests := []struct {
		name     string
		dialect  *dialect.Dialect
		from     string
		compound string
	}{
		{
			name:     "row value in",
			dialect:  dialect.OracleDialect,
			from:     " from sales_fact_1997 sales_fact_1997, product product, product_class product_class, time_by_day time_by_day",
			compound: "((time_by_day.the_year, time_by_day.quarter, time_by_day.month_of_year) in ((1997, 'Q1', 1), (1997, 'Q3', 7)))",
		},
		{
			name:    "disjunction",
			dialect: dialect.SQLiteDialect,
			from:    " from sales_fact_1997 as sales_fact_1997, product as product, product_class as product_class, time_by_day as time_by_day",
			compound: "((time_by_day.the_year = 1997 and time_by_day.quarter = 'Q1' and time_by_day.month_of_year = 1)" +
				" or (time_by_day.the_year = 1997 and time_by_day.quarter = 'Q3' and time_by_day.month_of_year = 7))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.dialect, false).SegmentSQL(p, values, &compound)
			require.NoError(t, err)
			assert.Equal(t,
				"select product_class.product_family as c0, sum(sales_fact_1997.unit_sales) as m0"+
					tt.from+where+tt.compound+" group by product_class.product_family",
				got)
		})
	}

	t.Run("quoted disjunction", func(t *testing.T) {
		got, err := New(dialect.DerbyDialect, false).SegmentSQL(p, values, &compound)
		require.NoError(t, err)
		assert.Contains(t, got, `"product_class"."product_family" in ('Drink', 'Food')`+
			` and "sales_fact_1997"."time_id" = "time_by_day"."time_id"`+
			` and (("time_by_day"."the_year" = 1997 and "time_by_day"."quarter" = 'Q1'`)
	})
}

func TestSegmentSQL_SingleTupleCompound(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	compound := testutil.YearQuarterMonth(t, sales, [3]string{"1997", "Q1", "1"})
	p := plan(t, sales, nil, &compound, "Unit Sales")

	got, err := New(dialect.DuckDBDialect, false).SegmentSQL(p, nil, &compound)
	require.NoError(t, err)
	assert.Equal(t,
		"select agg_c_10_sales_fact_1997.unit_sales as m0"+
			" from agg_c_10_sales_fact_1997 as agg_c_10_sales_fact_1997"+
			" where (agg_c_10_sales_fact_1997.the_year = 1997 and agg_c_10_sales_fact_1997.quarter = 'Q1'"+
			" and agg_c_10_sales_fact_1997.month_of_year = 1)",
		got)
}

func TestSegmentSQL_SingleColumnCompound(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	gender := testutil.Column(t, sales, "customer", "gender")
	compound, err := domain.CompoundPredicate([]*domain.Column{gender}, [][]domain.Literal{lits("M"), lits("F")})
	require.NoError(t, err)
	p := plan(t, sales, nil, &compound, "Unit Sales")

	got, err := New(dialect.SQLiteDialect, false).SegmentSQL(p, nil, &compound)
	require.NoError(t, err)
	assert.Contains(t, got, "from sales_fact_1997 as sales_fact_1997, customer as customer"+
		" where sales_fact_1997.customer_id = customer.customer_id and customer.gender in ('F', 'M')")
}

func TestSegmentSQL_NullValue(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	state := testutil.Column(t, sales, "store", "store_state")
	p := plan(t, sales, []*domain.Column{state}, nil, "Unit Sales")
	s := New(dialect.SQLiteDialect, false)

	got, err := s.SegmentSQL(p, [][]domain.Literal{{domain.Null, domain.String("CA")}}, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "store.store_id and (store.store_state = 'CA' or store.store_state is null) group by")

	got, err = s.SegmentSQL(p, [][]domain.Literal{{domain.Null}}, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "store.store_id and store.store_state is null group by")
}

func TestSegmentSQL_FactOnlyStar(t *testing.T) {
	store := testutil.MustStar(t, testutil.FoodMart(t), "Store")
	typ := testutil.Column(t, store, "store", "store_type")
	p := plan(t, store, []*domain.Column{typ}, nil, "Store Sqft")

	got, err := New(dialect.SQLiteDialect, false).SegmentSQL(p, [][]domain.Literal{lits("Supermarket")}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"select store.store_type as c0, sum(store.store_sqft) as m0 from store as store"+
			" where store.store_type = 'Supermarket' group by store.store_type",
		got)
}

func TestSegmentSQL_Mismatch(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	gender := testutil.Column(t, sales, "customer", "gender")
	p := plan(t, sales, []*domain.Column{gender}, nil, "Unit Sales")

	_, err := New(nil, false).SegmentSQL(p, nil, nil)
	require.Error(t, err)

	compound := testutil.YearQuarterMonth(t, sales, [3]string{"1997", "Q1", "1"})
	_, err = New(nil, false).SegmentSQL(p, [][]domain.Literal{lits("F")}, &compound)
	require.Error(t, err)
}

func TestTupleSQL(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	country := testutil.Column(t, sales, "store", "store_country")
	year := testutil.Column(t, sales, "time_by_day", "the_year")
	p, err := navigator.New(nil).NavigateTuples(sales, []*domain.Column{country}, []*domain.Column{year})
	require.NoError(t, err)

	got, err := New(dialect.SQLiteDialect, false).TupleSQL(p, 1, []domain.Literal{domain.Int(1998)})
	require.NoError(t, err)
	assert.Equal(t,
		"select store.store_country as c0"+
			" from agg_c_14_sales_fact_1997 as agg_c_14_sales_fact_1997, store as store"+
			" where agg_c_14_sales_fact_1997.store_id = store.store_id"+
			" and agg_c_14_sales_fact_1997.the_year = 1998"+
			" group by store.store_country order by store.store_country IS NULL ASC, store.store_country ASC",
		got)

	got, err = New(dialect.MySQLDialect, false).TupleSQL(p, 1, []domain.Literal{domain.Int(1998)})
	require.NoError(t, err)
	assert.Equal(t,
		"select `store`.`store_country` as `c0`"+
			" from `agg_c_14_sales_fact_1997` as `agg_c_14_sales_fact_1997`, `store` as `store`"+
			" where `agg_c_14_sales_fact_1997`.`store_id` = `store`.`store_id`"+
			" and `agg_c_14_sales_fact_1997`.`the_year` = 1998"+
			" group by `store`.`store_country` order by ISNULL(`store`.`store_country`) ASC, `store`.`store_country` ASC",
		got)

	_, err = New(dialect.MySQLDialect, false).TupleSQL(p, 1, nil)
	require.Error(t, err)
}

func TestTupleSQL_DimensionOnly(t *testing.T) {
	sales := testutil.Sales(t, testutil.FoodMart(t))
	family := testutil.Column(t, sales, "product_class", "product_family")
	name := testutil.Column(t, sales, "product", "product_name")
	p, err := navigator.New(nil).NavigateTuples(sales, []*domain.Column{family, name}, nil)
	require.NoError(t, err)

	got, err := New(dialect.DuckDBDialect, false).TupleSQL(p, 2, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"select product_class.product_family as c0, product.product_name as c1"+
			" from product as product, product_class as product_class"+
			" where product.product_class_id = product_class.product_class_id"+
			" group by product_class.product_family, product.product_name"+
			" order by product_class.product_family IS NULL ASC, product_class.product_family ASC,"+
			" product.product_name IS NULL ASC, product.product_name ASC",
		got)
}

func TestCardinalitySQL(t *testing.T) {
	schema := testutil.FoodMart(t)
	sales := testutil.Sales(t, schema)
	country := testutil.Column(t, sales, "store", "store_country")
	ragged := testutil.MustStar(t, schema, "Sales Ragged")
	raggedCountry := testutil.Column(t, ragged, "store_ragged", "store_country")

	s := New(dialect.SQLiteDialect, false)
	assert.Equal(t, "select count(distinct store.store_country) as c0 from store as store", s.CardinalitySQL(country))
	assert.Equal(t,
		"select count(*) from (select distinct store_ragged.store_country as c0 from store_ragged as store_ragged) as init",
		s.CardinalitySQL(raggedCountry))

	m := New(dialect.MySQLDialect, false)
	assert.Equal(t, "select count(*) from (select distinct store_ragged.store_country as `c0` from `store_ragged` as `store_ragged`) as `init`",
		m.CardinalitySQL(raggedCountry))

	o := New(dialect.OracleDialect, false)
	assert.Equal(t, "select count(distinct store.store_country) as c0 from store store", o.CardinalitySQL(country))
	assert.Equal(t,
		"select count(*) from (select distinct store_ragged.store_country as c0 from store_ragged store_ragged) init",
		o.CardinalitySQL(raggedCountry))
}

func TestRowCountSQL(t *testing.T) {
	assert.Equal(t,
		"select count(*) as c0 from agg_c_10_sales_fact_1997 as agg_c_10_sales_fact_1997",
		New(dialect.SQLiteDialect, false).RowCountSQL("agg_c_10_sales_fact_1997"))
}
