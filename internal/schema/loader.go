package schema

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"aggnav/internal/domain"
)

// Load reads and builds the schema file at path.
func Load(path string) (*domain.Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a schema document, rejecting unknown fields, and builds it.
func Parse(data []byte) (*domain.Schema, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if doc.APIVersion != SupportedAPIVersion {
		return nil, fmt.Errorf("unsupported apiVersion %q (expected %q)", doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindSchema {
		return nil, fmt.Errorf("unexpected kind %q (expected %q)", doc.Kind, KindSchema)
	}
	return Build(doc)
}

// Build turns a decoded document into an immutable schema.
func Build(doc Document) (*domain.Schema, error) {
	s := &domain.Schema{Name: doc.Metadata.Name}
	for _, spec := range doc.Spec.Stars {
		if _, err := s.Star(spec.Name); err == nil {
			return nil, domain.ErrConfiguration(spec.Name, "star is declared twice")
		}
		star, err := buildStar(spec)
		if err != nil {
			return nil, err
		}
		s.Stars = append(s.Stars, star)
	}
	return s, nil
}

func buildStar(spec StarSpec) (*domain.Star, error) {
	if spec.Name == "" {
		return nil, domain.ErrConfiguration("", "star without a name")
	}
	star := &domain.Star{Name: spec.Name}

	byName := make(map[string]*domain.Table, len(spec.Tables))
	for _, ts := range spec.Tables {
		if _, dup := byName[ts.Name]; dup {
			return nil, domain.ErrConfiguration(ts.Name, "table is declared twice in star %q", spec.Name)
		}
		byName[ts.Name] = &domain.Table{Name: ts.Name, ParentKey: ts.ParentKey, Key: ts.Key}
	}
	fact, ok := byName[spec.Fact]
	if !ok {
		return nil, domain.ErrConfiguration(spec.Name, "fact table %q is not declared", spec.Fact)
	}
	star.Fact = fact
	star.Tables = append(star.Tables, fact)

	for _, ts := range spec.Tables {
		t := byName[ts.Name]
		if t == fact {
			if ts.Parent != "" {
				return nil, domain.ErrConfiguration(ts.Name, "fact table cannot have a parent")
			}
			continue
		}
		parent, ok := byName[ts.Parent]
		if !ok {
			return nil, domain.ErrConfiguration(ts.Name, "parent table %q is not declared", ts.Parent)
		}
		if ts.ParentKey == "" || ts.Key == "" {
			return nil, domain.ErrConfiguration(ts.Name, "dimension table needs parentKey and key")
		}
		t.Parent = parent
		star.Tables = append(star.Tables, t)
	}
	for _, t := range star.Tables {
		if err := checkAcyclic(t); err != nil {
			return nil, err
		}
	}

	for _, ts := range spec.Tables {
		t := byName[ts.Name]
		for _, cs := range ts.Columns {
			typ, err := domain.ParseDataType(cs.Type)
			if err != nil {
				return nil, domain.ErrConfiguration(ts.Name+"."+cs.Name, "%s", err.Error())
			}
			star.Columns = append(star.Columns, &domain.Column{Table: t, Name: cs.Name, Expr: cs.Expression, Type: typ})
		}
	}

	for _, ds := range spec.Dimensions {
		d := &domain.Dimension{Name: ds.Name}
		for _, ls := range ds.Levels {
			c, err := star.LookupColumn(ls.Table, ls.Column)
			if err != nil {
				return nil, domain.ErrConfiguration(ds.Name+"."+ls.Name, "%s", err.Error())
			}
			d.Levels = append(d.Levels, &domain.Level{Name: ls.Name, Column: c})
		}
		star.Dimensions = append(star.Dimensions, d)
	}

	for _, ms := range spec.Measures {
		table := ms.Table
		if table == "" {
			table = fact.Name
		}
		c, err := star.LookupColumn(table, ms.Column)
		if err != nil {
			return nil, domain.ErrConfiguration(ms.Name, "%s", err.Error())
		}
		agg, err := domain.ParseAggregator(ms.Aggregator)
		if err != nil {
			return nil, domain.ErrConfiguration(ms.Name, "%s", err.Error())
		}
		star.Measures = append(star.Measures, &domain.Measure{Name: ms.Name, Column: c, Aggregator: agg})
	}

	for _, as := range spec.Aggregates {
		if slices.Contains(spec.Exclude, as.Name) {
			continue
		}
		if _, dup := star.Aggregate(as.Name); dup {
			return nil, domain.ErrConfiguration(as.Name, "aggregate is declared twice")
		}
		agg, err := buildAggregate(star, as)
		if err != nil {
			return nil, err
		}
		star.Aggregates = append(star.Aggregates, agg)
	}
	return star, nil
}

func checkAcyclic(t *domain.Table) error {
	seen := map[*domain.Table]bool{}
	for cur := t; cur != nil; cur = cur.Parent {
		if seen[cur] {
			return domain.ErrConfiguration(t.Name, "table parents form a cycle")
		}
		seen[cur] = true
	}
	return nil
}

func buildAggregate(star *domain.Star, spec AggregateSpec) (*domain.AggregateDescriptor, error) {
	agg := &domain.AggregateDescriptor{
		Name:           spec.Name,
		FactCount:      spec.FactCount,
		IgnoreColumns:  spec.IgnoreColumns,
		Columns:        spec.Columns,
		ApproxRowCount: spec.ApproxRowCount,
	}
	for _, ls := range spec.Levels {
		c, err := star.LookupColumn(ls.Table, ls.Column)
		if err != nil {
			return nil, domain.ErrConfiguration(spec.Name, "%s", err.Error())
		}
		aggColumn := ls.AggColumn
		if aggColumn == "" {
			aggColumn = ls.Column
		}
		collapsed := ls.Collapsed == nil || *ls.Collapsed
		agg.Levels = append(agg.Levels, domain.LevelMapping{Column: c, AggColumn: aggColumn, Collapsed: collapsed})
	}
	for _, ms := range spec.Measures {
		m, err := star.LookupMeasure(ms.Measure)
		if err != nil {
			return nil, domain.ErrConfiguration(spec.Name, "%s", err.Error())
		}
		mm := domain.MeasureMapping{Measure: m, AggColumn: ms.Column}
		if ms.Rollup != "" {
			if mm.Rollup, err = domain.ParseAggregator(ms.Rollup); err != nil {
				return nil, domain.ErrConfiguration(spec.Name, "%s", err.Error())
			}
		}
		agg.Measures = append(agg.Measures, mm)
	}
	if err := agg.Validate(); err != nil {
		return nil, err
	}
	return agg, nil
}
