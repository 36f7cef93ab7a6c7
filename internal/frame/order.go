package frame

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// SortBy returns a copy stably sorted ascending by keys.
// NaN floats sort last.
func (f *Frame) SortBy(keys ...string) (*Frame, error) {
	if err := f.Require(keys...); err != nil {
		return nil, err
	}

	rows := make([]int, f.n)
	for i := range rows {
		rows[i] = i
	}

	cols := make([]Column, len(keys))
	for i, k := range keys {
		cols[i] = f.cols[k]
	}

	sort.SliceStable(rows, func(a, b int) bool {
		for _, c := range cols {
			if cmp := compareRows(c, rows[a], rows[b]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	return f.Take(rows), nil
}

// IsSortedBy reports whether rows are already in ascending key order.
func (f *Frame) IsSortedBy(keys ...string) (bool, error) {
	if err := f.Require(keys...); err != nil {
		return false, err
	}
	for i := 1; i < f.n; i++ {
		for _, k := range keys {
			cmp := compareRows(f.cols[k], i-1, i)
			if cmp > 0 {
				return false, nil
			}
			if cmp < 0 {
				break
			}
		}
	}
	return true, nil
}

// compareRows returns:
//   - negative if row a < row b
//   - zero if equal
//   - positive if row a > row b
func compareRows(c Column, a, b int) int {
	switch c.Kind {
	case KindString:
		return strings.Compare(c.str[a], c.str[b])
	case KindTime:
		return c.tm[a].Compare(c.tm[b])
	case KindFloat:
		x, y := c.f[a], c.f[b]
		switch {
		case math.IsNaN(x) && math.IsNaN(y):
			return 0
		case math.IsNaN(x):
			return 1
		case math.IsNaN(y):
			return -1
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// rowKey encodes the key tuple of a row for hashing.
func rowKey(cols []Column, row int) string {
	var sb strings.Builder
	for i, c := range cols {
		if i > 0 {
			sb.WriteByte(0)
		}
		switch c.Kind {
		case KindString:
			sb.WriteString(c.str[row])
		case KindTime:
			sb.WriteString(strconv.FormatInt(c.tm[row].UnixNano(), 10))
		case KindFloat:
			sb.WriteString(strconv.FormatFloat(c.f[row], 'g', -1, 64))
		}
	}
	return sb.String()
}

// DuplicateKeys counts rows whose key tuple already appeared earlier.
func (f *Frame) DuplicateKeys(keys ...string) (int, error) {
	if err := f.Require(keys...); err != nil {
		return 0, err
	}
	cols := make([]Column, len(keys))
	for i, k := range keys {
		cols[i] = f.cols[k]
	}

	seen := make(map[string]struct{}, f.n)
	dups := 0
	for i := 0; i < f.n; i++ {
		key := rowKey(cols, i)
		if _, exists := seen[key]; exists {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups, nil
}

// Group is the set of row positions sharing one key, in row order.
type Group struct {
	Key  string
	Rows []int
}

// GroupBy partitions rows by the value of a string or time column.
// Groups appear in first-appearance order.
func (f *Frame) GroupBy(key string) ([]Group, error) {
	c, ok := f.cols[key]
	if !ok {
		return nil, f.Require(key)
	}
	if c.Kind == KindFloat {
		return nil, fmt.Errorf("group by float column %s is not supported", key)
	}

	index := make(map[string]int)
	var groups []Group
	for i := 0; i < f.n; i++ {
		k := rowKey([]Column{c}, i)
		pos, exists := index[k]
		if !exists {
			pos = len(groups)
			index[k] = pos
			label := k
			if c.Kind == KindTime {
				label = c.tm[i].Format("2006-01-02")
			}
			groups = append(groups, Group{Key: label})
		}
		groups[pos].Rows = append(groups[pos].Rows, i)
	}
	return groups, nil
}

// TransformByGroup runs fn over each group's values as an ordered sequence
// and writes the results back to the groups' original row positions.
// fn must return a slice of the same length it was given.
func TransformByGroup(groups []Group, values []float64, fn func(seq []float64) []float64) []float64 {
	out := Missing(len(values))
	for _, g := range groups {
		seq := make([]float64, len(g.Rows))
		for i, r := range g.Rows {
			seq[i] = values[r]
		}
		res := fn(seq)
		for i, r := range g.Rows {
			out[r] = res[i]
		}
	}
	return out
}

// BroadcastByGroup reduces each group with agg and repeats the result on
// every row of the group.
func BroadcastByGroup(groups []Group, values []float64, agg func(seq []float64) float64) []float64 {
	out := Missing(len(values))
	for _, g := range groups {
		seq := make([]float64, len(g.Rows))
		for i, r := range g.Rows {
			seq[i] = values[r]
		}
		v := agg(seq)
		for _, r := range g.Rows {
			out[r] = v
		}
	}
	return out
}

// Sum adds the non-missing values; an all-missing sequence sums to 0.
func Sum(seq []float64) float64 {
	total := 0.0
	for _, v := range seq {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}
