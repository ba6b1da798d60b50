// Package dataset reads the hotel review CSV and groups its rows by hotel.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"hotel_tones/internal/domain"
)

const (
	CategoryColumn = "categories"
	NameColumn     = "name"
	HotelCategory  = "Hotels"
)

// Dataset is the filtered review table. It is read-only once built.
type Dataset struct {
	columns []string
	records []domain.ReviewRecord
	groups  map[string][]int
	hotels  []string
}

func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, nil
}

// Read keeps only "Hotels" rows, drops the categories column and lower-cases
// hotel names so case variants land in one group.
func Read(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: %w", domain.ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	for _, c := range []string{CategoryColumn, NameColumn} {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, c)
		}
	}
	catIdx := pos[CategoryColumn]

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if row[catIdx] == HotelCategory {
			rows = append(rows, row)
		}
	}

	ds := &Dataset{groups: make(map[string][]int)}
	type column struct {
		name string
		idx  int
		conv func(string) any
	}
	var cols []column
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == CategoryColumn {
			continue
		}
		ds.columns = append(ds.columns, name)
		conv := inferColumn(rows, i)
		if name == NameColumn {
			conv = func(s string) any { return strings.ToLower(s) }
		}
		cols = append(cols, column{name: name, idx: i, conv: conv})
	}

	ds.records = make([]domain.ReviewRecord, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]any, len(cols))
		for _, c := range cols {
			fields[c.name] = c.conv(row[c.idx])
		}
		hotel := fields[NameColumn].(string)
		if _, ok := ds.groups[hotel]; !ok {
			ds.hotels = append(ds.hotels, hotel)
		}
		ds.groups[hotel] = append(ds.groups[hotel], len(ds.records))
		ds.records = append(ds.records, domain.ReviewRecord{Fields: fields})
	}
	sort.Strings(ds.hotels)
	return ds, nil
}

// Columns lists the kept columns in file order.
func (d *Dataset) Columns() []string { return append([]string(nil), d.columns...) }

func (d *Dataset) Records() []domain.ReviewRecord { return d.records }

func (d *Dataset) Len() int { return len(d.records) }

// Hotels returns the group keys in sorted order.
func (d *Dataset) Hotels() []string { return append([]string(nil), d.hotels...) }

// Group looks a hotel up case-insensitively.
func (d *Dataset) Group(name string) (domain.HotelGroup, error) {
	key := strings.ToLower(name)
	idx, ok := d.groups[key]
	if !ok {
		return domain.HotelGroup{}, fmt.Errorf("%w: %q", domain.ErrUnknownHotel, name)
	}
	g := domain.HotelGroup{Name: key, Records: make([]domain.ReviewRecord, len(idx))}
	for i, j := range idx {
		g.Records[i] = d.records[j]
	}
	return g, nil
}

func (d *Dataset) Groups() []domain.HotelGroup {
	out := make([]domain.HotelGroup, 0, len(d.hotels))
	for _, h := range d.hotels {
		g, _ := d.Group(h)
		out = append(out, g)
	}
	return out
}

const (
	kindInt = iota
	kindFloat
	kindString
)

// inferColumn picks one scalar type for a whole column: int if every
// non-empty cell is an integer, float if every cell is a finite number,
// string otherwise. Empty cells become nil.
func inferColumn(rows [][]string, i int) func(string) any {
	kind := kindInt
	for _, row := range rows {
		v := strings.TrimSpace(row[i])
		if v == "" {
			continue
		}
		if kind == kindInt {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			kind = kindFloat
		}
		if f, err := strconv.ParseFloat(v, 64); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			kind = kindString
			break
		}
	}
	return func(s string) any {
		t := strings.TrimSpace(s)
		if t == "" {
			return nil
		}
		switch kind {
		case kindInt:
			n, _ := strconv.ParseInt(t, 10, 64)
			return n
		case kindFloat:
			f, _ := strconv.ParseFloat(t, 64)
			return f
		}
		return s
	}
}
