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

// Package overlay computes overlays of attributed polygon layers:
// intersection, union, difference, symmetric difference and identity.
// Output features carry the attributes of the input features they came
// from, and output order does not depend on the number of workers.
//
// Clipping is done with github.com/ctessum/geom and ring validity is
// checked and repaired with GEOS through github.com/twpayne/go-geos.
package overlay

import (
	"context"
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.1.0"

// sameSR determines whether two spatial references are structurally equal.
// Two nil references are equal.
func sameSR(a, b *proj.SR) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b, 0)
}

// indexedFeature is a prepared input feature that can be stored in an
// R-tree.
type indexedFeature struct {
	geom.Polygonal
	index   int
	feature *Feature
}

func (f *indexedFeature) multiPolygon() geom.MultiPolygon {
	return f.Polygonal.(geom.MultiPolygon)
}

// piece is an output geometry and the input features it came from.
type piece struct {
	a, b int
	g    geom.MultiPolygon
}

// unitResult holds the output of a single work unit.
type unitResult struct {
	pieces []piece
	diags  []error
	fatal  error
}

type engine struct {
	o   *Options
	log logrus.FieldLogger
	c   *clipper
}

func newEngine(o *Options) (*engine, error) {
	o, err := o.withDefaults()
	if err != nil {
		return nil, err
	}
	return &engine{
		o:   o,
		log: o.Log,
		c:   &clipper{tolerance: o.Tolerance, maxRetries: o.MaxRetries},
	}, nil
}

// Overlay computes the overlay of layers a and b using the specified mode.
// The inputs are not modified. If o is nil, DefaultOptions is used.
//
// The spatial references of a and b must be equal, and all features must
// be Polygons or MultiPolygons; otherwise an error is returned without a
// result. Problems with individual features or pairs of features are
// reported in Result.Diagnostics unless o.Validity is Strict or o.Strict
// is true, in which case they cause the overlay to fail.
//
// Work is checked for cancellation between batches of o.BatchSize features.
// If ctx is cancelled or its deadline passes, the returned error wraps
// ErrCancelled and the returned result holds the completed batches,
// with Result.Cancelled set.
func Overlay(ctx context.Context, a, b *Layer, mode Mode, o *Options) (*Result, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("overlay: invalid mode %v", mode)
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("overlay: nil input layer")
	}
	if !sameSR(a.SR, b.SR) {
		return nil, fmt.Errorf("%w: layer %s and layer %s", ErrCRSMismatch, a.name(), b.name())
	}
	e, err := newEngine(o)
	if err != nil {
		return nil, err
	}
	log := e.log.WithFields(logrus.Fields{
		"mode":   mode.String(),
		"layerA": a.name(),
		"layerB": b.name(),
	})
	log.WithFields(logrus.Fields{
		"featuresA": len(a.Features),
		"featuresB": len(b.Features),
		"tolerance": e.o.Tolerance,
		"validity":  e.o.Validity.String(),
	}).Debug("starting overlay")

	if err := checkPolygonal(a); err != nil {
		return nil, err
	}
	if err := checkPolygonal(b); err != nil {
		return nil, err
	}
	r := &Result{Mode: mode, SR: a.SR, Projection: a.Projection}
	pa, diags, err := e.prepare(a)
	if err != nil {
		return nil, err
	}
	r.Diagnostics = append(r.Diagnostics, diags...)
	pb, diags, err := e.prepare(b)
	if err != nil {
		return nil, err
	}
	r.Diagnostics = append(r.Diagnostics, diags...)

	s := newSchema(a, b, mode, e.o.Suffixes)
	r.Fields = s.fields

	treeB := buildIndex(pb)
	var treeA *rtree.Rtree
	if mode.needsResidualB() {
		treeA = buildIndex(pa)
	}

	// One work unit for each feature in a, followed by one for each
	// feature in b if the parts of b outside of a are needed.
	nUnits := len(pa)
	if mode.needsResidualB() {
		nUnits += len(pb)
	}
	results := make([]unitResult, nUnits)
	done, err := e.run(ctx, nUnits, func(i int) {
		if i < len(pa) {
			if pa[i] != nil {
				results[i] = e.processA(pa[i], candidates(treeB, pa[i]), mode, a, b)
			}
			return
		}
		j := i - len(pa)
		if pb[j] != nil {
			results[i] = e.processB(pb[j], candidates(treeA, pb[j]), b, a)
		}
	})

	// Fatal errors are returned in work-unit order so the
	// error does not depend on scheduling.
	for _, ur := range results[:done] {
		if ur.fatal != nil {
			log.WithError(ur.fatal).Error("overlay failed")
			return nil, ur.fatal
		}
	}
	for _, ur := range results[:done] {
		r.Diagnostics = append(r.Diagnostics, ur.diags...)
		for _, p := range ur.pieces {
			var fa, fb *Feature
			if p.a >= 0 {
				fa = a.Features[p.a]
			}
			if p.b >= 0 {
				fb = b.Features[p.b]
			}
			r.Features = append(r.Features, &ResultFeature{
				Feature: Feature{Geom: p.g, Attributes: s.merge(fa, fb)},
				A:       p.a,
				B:       p.b,
			})
		}
	}
	sortFeatures(r.Features)

	fields := logrus.Fields{
		"features":    len(r.Features),
		"diagnostics": len(r.Diagnostics),
	}
	if err != nil {
		r.Cancelled = true
		log.WithFields(fields).WithError(err).Warn("overlay cancelled")
		return r, err
	}
	log.WithFields(fields).Info("overlay complete")
	return r, nil
}

// checkPolygonal makes sure every feature in l is polygonal.
func checkPolygonal(l *Layer) error {
	for i, f := range l.Features {
		switch f.Geom.(type) {
		case geom.Polygon, geom.MultiPolygon:
		default:
			return &FeatureError{
				Kind:    ErrUnsupportedGeometry,
				Layer:   l.name(),
				Feature: i,
				Other:   -1,
				Err:     fmt.Errorf("geometry type is %T; only Polygon and MultiPolygon are supported", f.Geom),
			}
		}
	}
	return nil
}

// prepare validates, repairs, and snaps the features in l. Features that
// cannot be used are nil in the output and reported as diagnostics.
func (e *engine) prepare(l *Layer) ([]*indexedFeature, []error, error) {
	o := make([]*indexedFeature, len(l.Features))
	var diags []error
	for i, f := range l.Features {
		mp, _ := asMultiPolygon(f.Geom)
		if err := validateMultiPolygon(mp, e.o.Tolerance); err != nil {
			ferr := &FeatureError{Kind: ErrInvalidRing, Layer: l.name(), Feature: i, Other: -1, Err: err}
			if e.o.Validity == Strict {
				return nil, nil, ferr
			}
			repaired, rerr := repairMultiPolygon(mp, e.o.Tolerance)
			if rerr != nil {
				ferr.Err = fmt.Errorf("%v; repair failed: %v", err, rerr)
				e.log.WithFields(logrus.Fields{"layer": l.name(), "feature": i}).
					WithError(ferr).Warn("skipping invalid feature")
				diags = append(diags, ferr)
				continue
			}
			ferr.Repaired = true
			e.log.WithFields(logrus.Fields{"layer": l.name(), "feature": i}).
				WithError(err).Debug("repaired invalid feature")
			diags = append(diags, ferr)
			mp = repaired
		}
		if e.o.Tolerance > 0 {
			// Snapping can collapse or fold very small features; keep the
			// unsnapped version if it does.
			if snapped := snapMultiPolygon(mp, e.o.Tolerance); validateMultiPolygon(snapped, e.o.Tolerance) == nil {
				mp = snapped
			}
		}
		o[i] = &indexedFeature{Polygonal: mp, index: i, feature: f}
	}
	return o, diags, nil
}

func repairMultiPolygon(mp geom.MultiPolygon, tol float64) (geom.MultiPolygon, error) {
	var o geom.MultiPolygon
	for i, p := range mp {
		r, err := RepairPolygon(p, tol)
		if err != nil {
			if re, ok := err.(*RingError); ok {
				re.Polygon = i
			}
			return nil, err
		}
		o = append(o, r...)
	}
	if len(o) == 0 {
		return nil, &RingError{Ring: -1, Reason: "geometry is empty after repair"}
	}
	return o, nil
}

func buildIndex(fs []*indexedFeature) *rtree.Rtree {
	t := rtree.NewTree(25, 50)
	for _, f := range fs {
		if f != nil {
			t.Insert(f)
		}
	}
	return t
}

// candidates returns the features in t whose bounding boxes intersect
// the bounding box of f, sorted by index.
func candidates(t *rtree.Rtree, f *indexedFeature) []*indexedFeature {
	found := t.SearchIntersect(f.Bounds())
	o := make([]*indexedFeature, len(found))
	for i, g := range found {
		o[i] = g.(*indexedFeature)
	}
	sort.Slice(o, func(i, j int) bool { return o[i].index < o[j].index })
	return o
}

// processA computes the intersections of fa with its candidates and the
// part of fa not covered by any candidate, as required by mode.
func (e *engine) processA(fa *indexedFeature, cands []*indexedFeature, mode Mode, la, lb *Layer) unitResult {
	var ur unitResult
	if mode.needsIntersections() {
		for _, fb := range cands {
			g, attempts, err := e.c.clip(fa.multiPolygon(), fb.multiPolygon(), opIntersection)
			if err != nil {
				if ur.pairFailure(e, la, fa.index, lb.name(), fb.index, opIntersection, attempts, err) {
					return ur
				}
				continue
			}
			if len(g) > 0 {
				ur.pieces = append(ur.pieces, piece{a: fa.index, b: fb.index, g: g})
			}
		}
	}
	if mode.needsResidualA() {
		if g, ok := e.residual(&ur, fa, cands, la, lb); ok && len(g) > 0 {
			ur.pieces = append(ur.pieces, piece{a: fa.index, b: -1, g: g})
		}
	}
	return ur
}

// processB computes the part of fb not covered by any of its candidates
// from the other layer.
func (e *engine) processB(fb *indexedFeature, cands []*indexedFeature, lb, la *Layer) unitResult {
	var ur unitResult
	if g, ok := e.residual(&ur, fb, cands, lb, la); ok && len(g) > 0 {
		ur.pieces = append(ur.pieces, piece{a: -1, b: fb.index, g: g})
	}
	return ur
}

// residual subtracts each candidate from f in turn. It returns false if
// one of the subtractions failed, in which case the failure has been
// recorded in ur.
func (e *engine) residual(ur *unitResult, f *indexedFeature, cands []*indexedFeature, l, other *Layer) (geom.MultiPolygon, bool) {
	g := f.multiPolygon()
	for _, c := range cands {
		if len(g) == 0 {
			break
		}
		if !g.Bounds().Overlaps(c.Bounds()) {
			continue
		}
		r, attempts, err := e.c.clip(g, c.multiPolygon(), opDifference)
		if err != nil {
			ur.pairFailure(e, l, f.index, other.name(), c.index, opDifference, attempts, err)
			return nil, false
		}
		g = r
	}
	return g, true
}

// pairFailure records a failed pairwise computation. It returns true if
// the failure is fatal.
func (ur *unitResult) pairFailure(e *engine, l *Layer, i int, otherName string, j int, op clipOp, attempts int, err error) bool {
	ferr := &FeatureError{
		Kind:     ErrPairFailure,
		Layer:    l.name(),
		Feature:  i,
		Other:    j,
		Op:       op.String(),
		Attempts: attempts,
		Err:      err,
	}
	e.log.WithFields(logrus.Fields{
		"layer":    l.name(),
		"feature":  i,
		"other":    otherName,
		"otherIdx": j,
		"op":       op.String(),
		"attempts": attempts,
	}).WithError(err).Warn("pairwise computation failed")
	if e.o.Strict {
		ur.fatal = ferr
		return true
	}
	ur.diags = append(ur.diags, ferr)
	return false
}
