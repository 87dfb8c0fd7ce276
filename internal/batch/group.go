package batch

import (
	"aggnav/internal/domain"
)

// groupKey extends the batch key so that each distinct-count measure is loaded on its
// own: its navigation can fail where additive measures of the same shape succeed.
func groupKey(req *domain.CellRequest) string {
	key := req.BatchKey()
	if req.Measure.Distinct() {
		key += "|distinct:" + req.Measure.Name
	}
	return key
}

// groupRequests partitions requests by group key, keeping the order in which each
// group first appears.
func groupRequests(reqs []*domain.CellRequest) [][]*domain.CellRequest {
	index := make(map[string]int)
	var groups [][]*domain.CellRequest
	for _, req := range reqs {
		k := groupKey(req)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], req)
	}
	return groups
}

// newLoad merges a group into one batch. Columns follow the first request's order;
// each column's values are the sorted union across the group.
func newLoad(group []*domain.CellRequest) *Load {
	first := group[0]
	l := &Load{
		Star:     first.Star,
		Columns:  first.Columns(),
		Compound: first.Compound,
		Requests: group,
	}

	values := make([][]domain.Literal, len(l.Columns))
	seenMeasure := make(map[*domain.Measure]bool)
	for _, req := range group {
		for i, c := range l.Columns {
			v, _ := req.Value(c)
			values[i] = append(values[i], v)
		}
		if !seenMeasure[req.Measure] {
			seenMeasure[req.Measure] = true
			l.Measures = append(l.Measures, req.Measure)
		}
	}
	for i := range values {
		values[i] = domain.SortedUnique(values[i])
	}
	l.Values = values
	return l
}
