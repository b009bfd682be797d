// Package series holds the immutable per-metric tables loaded at start-up and the
// extractor that turns one entity row into an ordered time series.
package series

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Metric names a table in the store.
type Metric string

const (
	Rainfall Metric = "rainfall"
	Sunshine Metric = "sunshine"
	Price    Metric = "price"
)

// ErrEntityNotFound is returned when no row matches the requested entity.
var ErrEntityNotFound = errors.New("entity not found")

// EntityError carries the lookup that failed.
type EntityError struct {
	Metric Metric
	Entity string
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s: entity %q not found", e.Metric, e.Entity)
}

func (e *EntityError) Unwrap() error {
	return ErrEntityNotFound
}

// Lookup is the read-only view of a metric table consumed by the engine.
// Rows are addressed by index; callers never receive the underlying slices.
type Lookup interface {
	Metric() Metric
	Index(entity string) (int, bool)
	Value(row, year int) (float64, bool)
	HasYear(year int) bool
	Years() []int
	Entities() []string
}

// Table is an immutable entity × year grid. Build one with a Builder.
type Table struct {
	metric   Metric
	years    []int
	yearIdx  map[int]int
	entities []string
	index    map[string]int
	values   [][]float64
	present  [][]bool
	dupes    int
}

var _ Lookup = (*Table)(nil)

func (t *Table) Metric() Metric { return t.metric }

// Index returns the row of the first entity with this name.
func (t *Table) Index(entity string) (int, bool) {
	i, ok := t.index[entity]
	return i, ok
}

// Value reports the stored value for (row, year). Missing columns, empty cells and
// out-of-range rows all report false.
func (t *Table) Value(row, year int) (float64, bool) {
	if row < 0 || row >= len(t.values) {
		return 0, false
	}
	col, ok := t.yearIdx[year]
	if !ok || !t.present[row][col] {
		return 0, false
	}
	return t.values[row][col], true
}

func (t *Table) HasYear(year int) bool {
	_, ok := t.yearIdx[year]
	return ok
}

// Years returns a copy of the year columns in ascending order.
func (t *Table) Years() []int {
	return append([]int(nil), t.years...)
}

// Entities returns a copy of the entity names in insertion order.
func (t *Table) Entities() []string {
	return append([]string(nil), t.entities...)
}

func (t *Table) Len() int { return len(t.entities) }

// Duplicates reports how many repeated entity rows were dropped while loading.
func (t *Table) Duplicates() int { return t.dupes }

// Builder accumulates rows for one table. It is not safe for concurrent use.
type Builder struct {
	metric   Metric
	years    map[int]struct{}
	entities []string
	index    map[string]int
	rows     []map[int]float64
	dupes    int
}

func NewBuilder(metric Metric) *Builder {
	return &Builder{
		metric: metric,
		years:  make(map[int]struct{}),
		index:  make(map[string]int),
	}
}

// DeclareYears registers year columns, whether or not any row has a value there.
func (b *Builder) DeclareYears(years ...int) {
	for _, y := range years {
		b.years[y] = struct{}{}
	}
}

// AddRow appends a row keyed by year. NaN and infinite cells are stored as absent and
// cells for undeclared years are ignored. A repeated entity is dropped and AddRow
// returns false; the first row wins.
func (b *Builder) AddRow(entity string, cells map[int]float64) bool {
	if _, dup := b.index[entity]; dup {
		b.dupes++
		return false
	}
	row := make(map[int]float64, len(cells))
	for y, v := range cells {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		row[y] = v
	}
	b.index[entity] = len(b.entities)
	b.entities = append(b.entities, entity)
	b.rows = append(b.rows, row)
	return true
}

// Build freezes the builder into a Table.
func (b *Builder) Build() *Table {
	years := make([]int, 0, len(b.years))
	for y := range b.years {
		years = append(years, y)
	}
	sort.Ints(years)

	yearIdx := make(map[int]int, len(years))
	for i, y := range years {
		yearIdx[y] = i
	}

	t := &Table{
		metric:   b.metric,
		years:    years,
		yearIdx:  yearIdx,
		entities: append([]string(nil), b.entities...),
		index:    make(map[string]int, len(b.index)),
		values:   make([][]float64, len(b.rows)),
		present:  make([][]bool, len(b.rows)),
		dupes:    b.dupes,
	}
	for k, v := range b.index {
		t.index[k] = v
	}
	for r, cells := range b.rows {
		t.values[r] = make([]float64, len(years))
		t.present[r] = make([]bool, len(years))
		for y, v := range cells {
			if col, ok := yearIdx[y]; ok {
				t.values[r][col] = v
				t.present[r][col] = true
			}
		}
	}
	return t
}

// Store is the set of tables loaded for this process. It is populated once before
// serving and read concurrently afterwards.
type Store struct {
	tables map[Metric]*Table
}

func NewStore(tables ...*Table) *Store {
	s := &Store{tables: make(map[Metric]*Table, len(tables))}
	for _, t := range tables {
		if t != nil {
			s.tables[t.Metric()] = t
		}
	}
	return s
}

// Table returns the table for a metric, if it was loaded.
func (s *Store) Table(m Metric) (*Table, bool) {
	t, ok := s.tables[m]
	return t, ok
}
