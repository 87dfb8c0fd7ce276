package navigator

import (
	"aggnav/internal/domain"
)

// NavigateTuples plans a member listing of columns under constraints.
//
// Without constraints, columns of a single dimension are read from the dimension
// tables alone. Otherwise the same granularity rules as Navigate apply, minus the
// measure checks.
func (n *Navigator) NavigateTuples(star *domain.Star, columns, constrained []*domain.Column) (*Plan, error) {
	if len(columns) == 0 {
		return nil, domain.ErrValidation("member listing needs at least one column")
	}
	if len(constrained) == 0 {
		if p := dimensionPlan(star, columns); p != nil {
			n.record(p, star)
			return p, nil
		}
	}

	all := append(append([]*domain.Column{}, columns...), constrained...)
	var best *Plan
	var rejected []Rejection
	for _, agg := range star.Aggregates {
		p, reason := tryTuples(star, agg, all)
		if p == nil {
			rejected = append(rejected, Rejection{Aggregate: agg.Name, Reason: reason})
			continue
		}
		if best == nil || len(p.Joins) < len(best.Joins) {
			best = p
		}
	}
	if best == nil {
		best = factPlan(Batch{Star: star, Columns: all})
	}
	best.GroupBy = true
	best.Rejected = rejected
	n.record(best, star)
	return best, nil
}

func tryTuples(star *domain.Star, agg *domain.AggregateDescriptor, columns []*domain.Column) (*Plan, string) {
	p := &Plan{Star: star, Aggregate: agg, Source: agg.Name}
	joins := newJoinSet(nil)
	for _, c := range columns {
		if lm, ok := agg.Collapsed(c); ok {
			p.Columns = append(p.Columns, ColumnRef{Column: c, Table: agg.Name, Name: lm.AggColumn})
			continue
		}
		lm, ok := agg.JoinBack(c)
		if !ok {
			return nil, "column " + c.String() + " is not in its granularity"
		}
		path, _ := c.Table.PathFrom(lm.Column.Table)
		joins.add(path, agg.Name, lm.AggColumn)
		p.Columns = append(p.Columns, starRef(c))
	}
	p.Joins = joins.joins
	return p, ""
}

// dimensionPlan reads columns that all sit below one dimension root without
// touching the fact table. It returns nil when that is not possible.
func dimensionPlan(star *domain.Star, columns []*domain.Column) *Plan {
	root := columns[0].Table.Root()
	if root == nil {
		return nil
	}
	p := &Plan{Star: star, Source: root.Name, GroupBy: true}
	joins := newJoinSet(root)
	for _, c := range columns {
		if c.Table.Root() != root {
			return nil
		}
		path, _ := c.Table.PathFrom(root)
		joins.add(path, root.Name, "")
		p.Columns = append(p.Columns, starRef(c))
	}
	p.Joins = joins.joins
	return p
}
