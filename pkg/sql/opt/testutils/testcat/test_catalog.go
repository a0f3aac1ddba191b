// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package testcat implements cat.Catalog over tables described in YAML, for
// tests and for the optplan tool.
package testcat

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/qplan/pkg/sql/opt/cat"
	"gopkg.in/yaml.v2"
)

const defaultPageSize = 16384

// Catalog implements the cat.Catalog interface for testing purposes.
type Catalog struct {
	tables  map[string]*Table
	counter int
}

var _ cat.Catalog = &Catalog{}

// New creates a new empty instance of the test catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// Load creates a catalog from its YAML description.
func Load(data []byte) (*Catalog, error) {
	c := New()
	if err := c.ExecuteYAML(data); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveDataSource is part of the cat.Catalog interface.
func (tc *Catalog) ResolveDataSource(_ context.Context, name string) (cat.DataSource, error) {
	if t, ok := tc.tables[name]; ok {
		return t, nil
	}
	return nil, errors.Newf("no data source matches name: %q", name)
}

// Table returns the table with the given name, or nil.
func (tc *Catalog) Table(name string) *Table {
	return tc.tables[name]
}

// TableNames returns the sorted names of all tables.
func (tc *Catalog) TableNames() []string {
	names := make([]string, 0, len(tc.tables))
	for n := range tc.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (tc *Catalog) nextStableID() cat.StableID {
	tc.counter++
	return cat.StableID(100 + tc.counter)
}

type catalogDef struct {
	Tables []tableDef `yaml:"tables"`
}

type tableDef struct {
	Name    string      `yaml:"name"`
	Parent  string      `yaml:"parent"`
	Rows    *float64    `yaml:"rows"`
	Pages   *float64    `yaml:"pages"`
	Columns []columnDef `yaml:"columns"`
	Indexes []indexDef  `yaml:"indexes"`
}

type columnDef struct {
	Name     string   `yaml:"name"`
	Width    int      `yaml:"width"`
	Distinct *float64 `yaml:"distinct"`
	Nulls    float64  `yaml:"nulls"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
}

type indexDef struct {
	Name      string    `yaml:"name"`
	Columns   []string  `yaml:"columns"`
	Unique    bool      `yaml:"unique"`
	Height    int       `yaml:"height"`
	LeafPages float64   `yaml:"leaf_pages"`
	Distinct  []float64 `yaml:"distinct"`
	NoStats   bool      `yaml:"nostats"`
}

// ExecuteYAML adds the tables described by the YAML document to the catalog:
//
//	tables:
//	  - name: t
//	    rows: 1000
//	    pages: 10
//	    columns:
//	      - {name: k, distinct: 1000, min: 0, max: 999}
//	    indexes:
//	      - {name: t_k, columns: [k], unique: true}
//
// A table without rows has no statistics. Subclasses name their parent.
func (tc *Catalog) ExecuteYAML(data []byte) error {
	var def catalogDef
	if err := yaml.UnmarshalStrict(data, &def); err != nil {
		return errors.Wrap(err, "parsing catalog")
	}
	for i := range def.Tables {
		if err := tc.addTable(&def.Tables[i]); err != nil {
			return err
		}
	}
	return nil
}

func (tc *Catalog) addTable(def *tableDef) error {
	if def.Name == "" {
		return errors.New("table without a name")
	}
	if _, ok := tc.tables[def.Name]; ok {
		return errors.Newf("table %q already exists", def.Name)
	}
	tab := &Table{TabID: tc.nextStableID(), TabName: def.Name}
	if def.Rows != nil {
		tab.Stats = &cat.TableStatistics{RowCount: *def.Rows}
		if def.Pages != nil {
			tab.Stats.PageCount = *def.Pages
		} else {
			tab.Stats.PageCount = math.Max(1, math.Ceil(*def.Rows/100))
		}
	}
	var parent *Table
	if def.Parent != "" {
		parent = tc.tables[def.Parent]
		if parent == nil {
			return errors.Newf("table %q has unknown parent %q", def.Name, def.Parent)
		}
		// Subclasses inherit the columns of their parent.
		for _, c := range parent.Columns {
			col := *c
			col.Tab = tab
			col.Stat = nil
			tab.Columns = append(tab.Columns, &col)
		}
	}
	for _, cd := range def.Columns {
		col := tab.column(cd.Name)
		if col == nil {
			col = &Column{Tab: tab, Ord: len(tab.Columns), ColumnName: cd.Name}
			tab.Columns = append(tab.Columns, col)
		}
		col.Width = cd.Width
		if cd.Distinct != nil {
			col.Stat = &cat.ColumnStatistic{DistinctCount: *cd.Distinct, NullFraction: cd.Nulls}
			if cd.Min != nil && cd.Max != nil {
				col.Stat.HasRange = true
				col.Stat.Min, col.Stat.Max = *cd.Min, *cd.Max
			}
		}
	}
	for _, id := range def.Indexes {
		idx, err := tc.newIndex(tab, &id)
		if err != nil {
			return err
		}
		tab.Indexes = append(tab.Indexes, idx)
	}
	tc.tables[def.Name] = tab
	if parent != nil {
		parent.Subclasses = append(parent.Subclasses, tab)
	}
	return nil
}

func (tc *Catalog) newIndex(tab *Table, def *indexDef) (*Index, error) {
	if len(def.Columns) == 0 {
		return nil, errors.Newf("index %q has no columns", def.Name)
	}
	idx := &Index{IdxID: tc.nextStableID(), IdxName: def.Name, Tab: tab, Unique: def.Unique}
	keySize := 0
	for _, name := range def.Columns {
		col := tab.column(name)
		if col == nil {
			return nil, errors.Newf("index %q references unknown column %q", def.Name, name)
		}
		idx.Columns = append(idx.Columns, col.Ord)
		keySize += col.AvgSize()
	}
	if def.NoStats || tab.Stats == nil {
		return idx, nil
	}
	rows := tab.Stats.RowCount
	st := &cat.IndexStatistics{
		Height:    def.Height,
		LeafPages: def.LeafPages,
		KeySize:   keySize,
	}
	if st.LeafPages <= 0 {
		st.LeafPages = math.Max(1, math.Ceil(rows*float64(keySize+8)/defaultPageSize))
	}
	if st.Height <= 0 {
		st.Height = 1
		for fan := st.LeafPages; fan > 1; fan /= 100 {
			st.Height++
		}
	}
	st.TotalPages = st.LeafPages + float64(st.Height)
	st.PrefixDistinct = def.Distinct
	if len(st.PrefixDistinct) == 0 {
		// Estimate the distinct prefixes from the column statistics.
		d := 1.0
		for i, ord := range idx.Columns {
			colDistinct := rows
			if s := tab.Columns[ord].Stat; s != nil && s.DistinctCount > 0 {
				colDistinct = s.DistinctCount
			}
			d = math.Min(rows, d*colDistinct)
			if def.Unique && i == len(idx.Columns)-1 {
				d = rows
			}
			st.PrefixDistinct = append(st.PrefixDistinct, d)
		}
	}
	idx.Stats = st
	return idx, nil
}

// Table implements the cat.Table interface for testing purposes.
type Table struct {
	TabID      cat.StableID
	TabName    string
	Columns    []*Column
	Indexes    []*Index
	Subclasses []*Table
	Stats      *cat.TableStatistics
}

var _ cat.Table = &Table{}

func (tt *Table) String() string {
	return fmt.Sprintf("%s (%d columns, %d indexes)", tt.TabName, len(tt.Columns), len(tt.Indexes))
}

func (tt *Table) column(name string) *Column {
	for _, c := range tt.Columns {
		if c.ColumnName == name {
			return c
		}
	}
	return nil
}

// ID is part of the cat.Object interface.
func (tt *Table) ID() cat.StableID {
	return tt.TabID
}

// Name is part of the cat.DataSource interface.
func (tt *Table) Name() string {
	return tt.TabName
}

// ColumnCount is part of the cat.Table interface.
func (tt *Table) ColumnCount() int {
	return len(tt.Columns)
}

// Column is part of the cat.Table interface.
func (tt *Table) Column(i int) cat.Column {
	return tt.Columns[i]
}

// IndexCount is part of the cat.Table interface.
func (tt *Table) IndexCount() int {
	return len(tt.Indexes)
}

// Index is part of the cat.Table interface.
func (tt *Table) Index(i int) cat.Index {
	return tt.Indexes[i]
}

// Statistics is part of the cat.Table interface.
func (tt *Table) Statistics() (cat.TableStatistics, bool) {
	if tt.Stats == nil {
		return cat.TableStatistics{}, false
	}
	return *tt.Stats, true
}

// SubclassCount is part of the cat.Table interface.
func (tt *Table) SubclassCount() int {
	return len(tt.Subclasses)
}

// Subclass is part of the cat.Table interface.
func (tt *Table) Subclass(i int) cat.Table {
	return tt.Subclasses[i]
}

// Column implements the cat.Column interface for testing purposes.
type Column struct {
	Tab        *Table
	Ord        int
	ColumnName string
	Width      int
	Stat       *cat.ColumnStatistic
}

var _ cat.Column = &Column{}

// Ordinal is part of the cat.Column interface.
func (c *Column) Ordinal() int {
	return c.Ord
}

// ColName is part of the cat.Column interface.
func (c *Column) ColName() string {
	return c.ColumnName
}

// AvgSize is part of the cat.Column interface.
func (c *Column) AvgSize() int {
	if c.Width <= 0 {
		return 8
	}
	return c.Width
}

// Statistic is part of the cat.Column interface.
func (c *Column) Statistic() (cat.ColumnStatistic, bool) {
	if c.Stat == nil {
		return cat.ColumnStatistic{}, false
	}
	return *c.Stat, true
}

// Index implements the cat.Index interface for testing purposes.
type Index struct {
	IdxID   cat.StableID
	IdxName string
	Tab     *Table
	Unique  bool
	Columns []int
	Stats   *cat.IndexStatistics
}

var _ cat.Index = &Index{}

// ID is part of the cat.Object interface.
func (ti *Index) ID() cat.StableID {
	return ti.IdxID
}

// Name is part of the cat.Index interface.
func (ti *Index) Name() string {
	return ti.IdxName
}

// Table is part of the cat.Index interface.
func (ti *Index) Table() cat.Table {
	return ti.Tab
}

// IsUnique is part of the cat.Index interface.
func (ti *Index) IsUnique() bool {
	return ti.Unique
}

// KeyColumnCount is part of the cat.Index interface.
func (ti *Index) KeyColumnCount() int {
	return len(ti.Columns)
}

// KeyColumn is part of the cat.Index interface.
func (ti *Index) KeyColumn(i int) int {
	return ti.Columns[i]
}

// Statistics is part of the cat.Index interface.
func (ti *Index) Statistics() (cat.IndexStatistics, bool) {
	if ti.Stats == nil {
		return cat.IndexStatistics{}, false
	}
	return *ti.Stats, true
}
