// Package sqlgen assembles SELECT statements in a pretty or compact layout.
package sqlgen

import "strings"

const indent = "    "

// Select is a SELECT statement under construction. Items are rendered in the order
// they were added.
type Select struct {
	items   []string
	from    []string
	where   []string
	groupBy []string
	orderBy []string
}

// Item adds "expr as alias" (or bare expr when alias is empty).
func (s *Select) Item(expr, alias string) *Select {
	if alias != "" {
		expr += " as " + alias
	}
	s.items = append(s.items, expr)
	return s
}

// From adds a rendered table reference.
func (s *Select) From(ref string) *Select {
	s.from = append(s.from, ref)
	return s
}

// Where adds a conjunct.
func (s *Select) Where(cond string) *Select {
	s.where = append(s.where, cond)
	return s
}

// GroupBy adds a grouping expression.
func (s *Select) GroupBy(expr string) *Select {
	s.groupBy = append(s.groupBy, expr)
	return s
}

// OrderBy adds an ordering term.
func (s *Select) OrderBy(term string) *Select {
	s.orderBy = append(s.orderBy, term)
	return s
}

// String renders the compact single-line form.
func (s *Select) String() string { return s.Render(false) }

// Render writes the statement. Pretty output puts each clause keyword on its own line
// with items indented below it.
func (s *Select) Render(pretty bool) string {
	var b strings.Builder
	clause := func(keyword string, parts []string, sep string) {
		if len(parts) == 0 {
			return
		}
		if b.Len() > 0 {
			if pretty {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(keyword)
		if pretty {
			b.WriteString("\n" + indent)
			b.WriteString(strings.Join(parts, sep+"\n"+indent))
			return
		}
		b.WriteString(" ")
		b.WriteString(strings.Join(parts, sep+" "))
	}

	clause("select", s.items, ",")
	clause("from", s.from, ",")
	if pretty {
		if len(s.where) > 0 {
			b.WriteString("\nwhere\n" + indent)
			b.WriteString(strings.Join(s.where, "\nand\n"+indent))
		}
	} else {
		clause("where", s.where, " and")
	}
	clause("group by", s.groupBy, ",")
	clause("order by", s.orderBy, ",")
	return b.String()
}
