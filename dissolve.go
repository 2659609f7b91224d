/*
Copyright (C) 2019 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlay

import (
	"context"
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Aggregation specifies how the attribute values of dissolved features
// are combined.
type Aggregation int

const (
	// AggregateFirst keeps the values of the first feature in each group.
	AggregateFirst Aggregation = iota

	// AggregateSum adds up numeric values.
	AggregateSum

	// AggregateMean averages numeric values.
	AggregateMean

	// AggregateMin keeps the smallest numeric value.
	AggregateMin

	// AggregateMax keeps the largest numeric value.
	AggregateMax
)

var aggregationNames = []string{"first", "sum", "mean", "min", "max"}

func (a Aggregation) String() string {
	if a < 0 || int(a) >= len(aggregationNames) {
		return fmt.Sprintf("Aggregation(%d)", int(a))
	}
	return aggregationNames[a]
}

// ParseAggregation returns the aggregation with the given name, which is
// one of "first", "sum", "mean", "min", or "max".
func ParseAggregation(name string) (Aggregation, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, an := range aggregationNames {
		if n == an {
			return Aggregation(i), nil
		}
	}
	return 0, fmt.Errorf("overlay: invalid aggregation %q; valid options are %s", name, strings.Join(aggregationNames, ", "))
}

// Dissolve merges the features in l that share the same value of attribute
// by into a single feature. If by is empty, all features are merged into
// one. Groups are returned in the order their first feature appears in l.
// The other attributes of each group are combined using agg: with
// AggregateFirst every value comes from the first feature in the group,
// while the other aggregations combine numeric columns and keep the first
// value of columns that hold anything else. Null values are ignored.
//
// Features are validated and snapped in the same way as in Overlay.
// Features that are skipped or repaired, and members that could not be
// merged into their group, are returned as diagnostics.
//
// If ctx is done before all groups are merged, the returned error wraps
// ErrCancelled and the returned layer holds the groups that were completed.
func Dissolve(ctx context.Context, l *Layer, by string, agg Aggregation, o *Options) (*Layer, []error, error) {
	if l == nil {
		return nil, nil, fmt.Errorf("overlay: nil input layer")
	}
	if agg < AggregateFirst || agg > AggregateMax {
		return nil, nil, fmt.Errorf("overlay: invalid aggregation %v", agg)
	}
	e, err := newEngine(o)
	if err != nil {
		return nil, nil, err
	}
	log := e.log.WithFields(logrus.Fields{"layer": l.name(), "by": by, "aggregation": agg.String()})
	if err := checkPolygonal(l); err != nil {
		return nil, nil, err
	}
	prepared, diags, err := e.prepare(l)
	if err != nil {
		return nil, nil, err
	}

	var groups [][]*indexedFeature
	groupIndex := make(map[string]int)
	for _, f := range prepared {
		if f == nil {
			continue
		}
		key := ""
		if by != "" {
			v, ok := f.feature.Attributes[by]
			if !ok {
				return nil, nil, fmt.Errorf("overlay: dissolve: layer %s feature %d does not have attribute %q", l.name(), f.index, by)
			}
			// Include the type so that, for example, 1 and "1" are different groups.
			key = fmt.Sprintf("%T:%v", v, v)
		}
		g, ok := groupIndex[key]
		if !ok {
			g = len(groups)
			groupIndex[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], f)
	}

	cols := l.Columns()
	merged := make([]*Feature, len(groups))
	results := make([]unitResult, len(groups))
	done, err := e.run(ctx, len(groups), func(i int) {
		var g geom.MultiPolygon
		g, results[i] = e.union(groups[i], l)
		if len(g) > 0 && results[i].fatal == nil {
			merged[i] = &Feature{Geom: g, Attributes: aggregate(groups[i], cols, by, agg)}
		}
	})
	out := &Layer{
		Name:       l.Name,
		SR:         l.SR,
		Projection: l.Projection,
		Fields:     append([]string{}, cols...),
	}
	for _, ur := range results[:done] {
		if ur.fatal != nil {
			log.WithError(ur.fatal).Error("dissolve failed")
			return nil, nil, ur.fatal
		}
	}
	for i := 0; i < done; i++ {
		diags = append(diags, results[i].diags...)
		if merged[i] != nil {
			out.Features = append(out.Features, merged[i])
		}
	}
	fields := logrus.Fields{"groups": len(groups), "features": len(out.Features), "diagnostics": len(diags)}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("dissolve cancelled")
		return out, diags, err
	}
	log.WithFields(fields).Info("dissolve complete")
	return out, diags, nil
}

// union merges the geometry of the features in group. A member that
// cannot be merged is left out of the result and recorded in the returned
// unitResult; if the strict option is set, the failure is fatal.
func (e *engine) union(group []*indexedFeature, l *Layer) (geom.MultiPolygon, unitResult) {
	var ur unitResult
	var g geom.MultiPolygon
	for _, f := range group {
		if g == nil {
			g = f.multiPolygon()
			continue
		}
		r, attempts, err := e.c.clip(g, f.multiPolygon(), opUnion)
		if err != nil {
			if ur.pairFailure(e, l, group[0].index, l.name(), f.index, opUnion, attempts, err) {
				return nil, ur
			}
			continue
		}
		g = r
	}
	return g, ur
}

// aggregate combines the attributes of the features in group.
func aggregate(group []*indexedFeature, cols []string, by string, agg Aggregation) map[string]interface{} {
	first := group[0].feature.Attributes
	attrs := make(map[string]interface{}, len(first))
	for k, v := range first {
		attrs[k] = v
	}
	if agg == AggregateFirst {
		return attrs
	}
	for _, c := range cols {
		if c == by {
			continue
		}
		vals := make([]interface{}, 0, len(group))
		for _, f := range group {
			if v := f.feature.Attributes[c]; v != nil {
				vals = append(vals, v)
			}
		}
		if v, ok := aggregateValues(vals, agg); ok {
			attrs[c] = v
		}
	}
	return attrs
}

// aggregateValues combines vals, which must all be numbers. Sums of
// integers are integers, and Min and Max return one of the input values.
// It returns false if vals is empty or holds a value that is not a number.
func aggregateValues(vals []interface{}, agg Aggregation) (interface{}, bool) {
	if len(vals) == 0 {
		return nil, false
	}
	allInt := true
	f := make([]float64, len(vals))
	for i, v := range vals {
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		case float32, float64:
			allInt = false
		default:
			return nil, false
		}
		var err error
		if f[i], err = cast.ToFloat64E(v); err != nil {
			return nil, false
		}
	}
	switch agg {
	case AggregateSum:
		if allInt {
			var sum int64
			for _, v := range vals {
				sum += cast.ToInt64(v)
			}
			return int(sum), true
		}
		sum := 0.
		for _, x := range f {
			sum += x
		}
		return sum, true
	case AggregateMean:
		sum := 0.
		for _, x := range f {
			sum += x
		}
		return sum / float64(len(f)), true
	case AggregateMin, AggregateMax:
		best := 0
		for i, x := range f {
			if (agg == AggregateMin && x < f[best]) || (agg == AggregateMax && x > f[best]) {
				best = i
			}
		}
		return vals[best], true
	default:
		return nil, false
	}
}
