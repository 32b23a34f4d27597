package traits

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ModelColumn holds the model group of rows built from model-scoped keys.
const ModelColumn = "model"

// Centroid column names.
const (
	LonColumn = "lon"
	LatColumn = "lat"
)

// ErrNoFeatures is returned when no input collection has any features.
var ErrNoFeatures = errors.New("traits: no features")

// Table is an ordered column list and rows of string cells. Missing cells are
// "".
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Values returns the cells of a column in row order.
func (t *Table) Values(name string) []string {
	i := t.Column(name)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Builder accumulates feature collections into a Table.
type Builder struct {
	// Centroid adds lon/lat columns from each feature's geometry centroid.
	Centroid bool

	plain  columnSet
	traits columnSet
	rows   []map[string]string
}

type columnSet struct {
	names []string
	seen  map[string]bool
}

func (c *columnSet) add(name string) {
	if c.seen == nil {
		c.seen = make(map[string]bool)
	}
	if !c.seen[name] {
		c.seen[name] = true
		c.names = append(c.names, name)
	}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one row per feature and model group. Features without
// model-scoped keys produce a single row of their plain properties.
func (b *Builder) Add(fc *geojson.FeatureCollection) {
	if fc == nil {
		return
	}
	for _, f := range fc.Features {
		b.addFeature(f)
	}
}

func (b *Builder) addFeature(f *geojson.Feature) {
	base := make(map[string]string)
	groups := make(map[string]map[string]string)
	var order []string

	keys := make([]string, 0, len(f.Properties))
	for k := range f.Properties {
		keys = append(keys, k)
	}
	// Property maps are unordered; sort for a stable column order.
	sort.Strings(keys)

	for _, k := range keys {
		v := formatValue(f.Properties[k])
		mk, ok := ParseKey(k)
		if !ok {
			b.plain.add(k)
			base[k] = v
			continue
		}
		b.traits.add(mk.Column)
		g, exists := groups[mk.Model]
		if !exists {
			g = make(map[string]string)
			groups[mk.Model] = g
			order = append(order, mk.Model)
		}
		g[mk.Column] = v
	}

	if b.Centroid && f.Geometry != nil {
		c, _ := planar.CentroidArea(f.Geometry)
		base[LonColumn] = strconv.FormatFloat(c.Lon(), 'f', -1, 64)
		base[LatColumn] = strconv.FormatFloat(c.Lat(), 'f', -1, 64)
	}

	if len(order) == 0 {
		b.rows = append(b.rows, base)
		return
	}
	for _, model := range order {
		row := make(map[string]string, len(base)+len(groups[model])+1)
		for k, v := range base {
			row[k] = v
		}
		for k, v := range groups[model] {
			row[k] = v
		}
		row[ModelColumn] = model
		b.rows = append(b.rows, row)
	}
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int {
	return len(b.rows)
}

// Table returns the accumulated rows. Column order: plain properties, then
// lon/lat when enabled, then model, then trait columns.
func (b *Builder) Table() (*Table, error) {
	if len(b.rows) == 0 {
		return nil, ErrNoFeatures
	}
	cols := append([]string(nil), b.plain.names...)
	if b.Centroid {
		cols = append(cols, LonColumn, LatColumn)
	}
	if len(b.traits.names) > 0 {
		cols = append(cols, ModelColumn)
		cols = append(cols, b.traits.names...)
	}

	t := &Table{Columns: cols, Rows: make([][]string, len(b.rows))}
	for i, r := range b.rows {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = r[c]
		}
		t.Rows[i] = row
	}
	return t, nil
}

// Build is shorthand for adding every collection to a fresh builder.
func Build(centroid bool, collections ...*geojson.FeatureCollection) (*Table, error) {
	b := &Builder{Centroid: centroid}
	for _, fc := range collections {
		b.Add(fc)
	}
	return b.Table()
}

// ReadFile parses a GeoJSON feature collection from disk.
func ReadFile(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("traits: read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("traits: parse %s: %w", path, err)
	}
	return fc, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
