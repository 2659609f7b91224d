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

// Package render draws overlay layers as PNG maps.
package render

import (
	"fmt"
	"image/color"
	"io"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/spatialmodel/overlay"
	"github.com/spf13/cast"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Style specifies how a layer is drawn.
type Style struct {
	Layer *overlay.Layer

	// Fill is the fill color of the features. It is ignored if ColorBy
	// is set.
	Fill color.NRGBA

	// Stroke is the outline color of the features.
	Stroke color.NRGBA

	// ColorBy optionally specifies a numeric attribute that features
	// are colored by.
	ColorBy string
}

// Draw draws the layers in order, so that later layers are drawn on top of
// earlier ones, and writes the result to w as a PNG image that is width
// pixels wide. The map extent is the combined extent of the layers.
func Draw(w io.Writer, width int, layers ...Style) error {
	if width <= 0 {
		return fmt.Errorf("render: invalid width %d", width)
	}
	b := geom.NewBounds()
	for _, s := range layers {
		if s.Layer != nil && len(s.Layer.Features) > 0 {
			b.Extend(s.Layer.Bounds())
		}
	}
	if b.Empty() || b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y {
		return fmt.Errorf("render: layers have no extent")
	}
	// Pad the extent so outlines at the edges are visible.
	pad := 0.02 * (b.Max.X - b.Min.X)
	m := carto.NewRasterMap(b.Max.Y+pad, b.Min.Y-pad, b.Max.X+pad, b.Min.X-pad, width)

	for i, s := range layers {
		if s.Layer == nil {
			continue
		}
		fills, err := fillColors(s)
		if err != nil {
			return fmt.Errorf("render: layer %d: %v", i, err)
		}
		ls := draw.LineStyle{Color: s.Stroke, Width: 0.5 * vg.Millimeter}
		for j, f := range s.Layer.Features {
			if err := m.DrawVector(f.Geom, fills[j], ls, draw.GlyphStyle{}); err != nil {
				return fmt.Errorf("render: layer %d feature %d: %v", i, j, err)
			}
		}
	}
	return m.WriteTo(w)
}

// fillColors returns the fill color for each feature in s.
func fillColors(s Style) ([]color.NRGBA, error) {
	o := make([]color.NRGBA, len(s.Layer.Features))
	if s.ColorBy == "" {
		for i := range o {
			o[i] = s.Fill
		}
		return o, nil
	}
	vals := make([]float64, len(s.Layer.Features))
	present := make([]bool, len(s.Layer.Features))
	var data []float64
	for i, f := range s.Layer.Features {
		v, ok := f.Attributes[s.ColorBy]
		if !ok || v == nil {
			continue // Null values are not filled.
		}
		fv, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("feature %d attribute %s: %v", i, s.ColorBy, err)
		}
		vals[i], present[i] = fv, true
		data = append(data, fv)
	}
	if len(data) == 0 {
		return o, nil
	}
	cmap := carto.NewColorMap(carto.Linear)
	cmap.AddArray(data)
	cmap.Set()
	for i, v := range vals {
		if present[i] {
			o[i] = cmap.GetColor(v)
		}
	}
	return o, nil
}
