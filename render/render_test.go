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

package render

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/overlay"
)

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

func TestDraw(t *testing.T) {
	a := overlay.NewLayer("a", nil,
		&overlay.Feature{Geom: square(0, 0, 2, 2), Attributes: map[string]interface{}{"v": 1.}},
		&overlay.Feature{Geom: square(2, 0, 4, 2), Attributes: map[string]interface{}{"v": 3}},
		&overlay.Feature{Geom: square(4, 0, 6, 2), Attributes: map[string]interface{}{"v": nil}},
	)
	b := overlay.NewLayer("b", nil,
		&overlay.Feature{Geom: geom.MultiPolygon{square(1, 1, 3, 3), square(4, 2, 5, 3)}},
	)
	var buf bytes.Buffer
	err := Draw(&buf, 300,
		Style{Layer: a, ColorBy: "v", Stroke: color.NRGBA{A: 255}},
		Style{Layer: b, Fill: color.NRGBA{R: 255, A: 100}},
	)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if w := img.Bounds().Dx(); w != 300 {
		t.Errorf("width %d, want 300", w)
	}
	if h := img.Bounds().Dy(); h < 140 || h > 160 {
		t.Errorf("height %d, want about 150", h)
	}
}

func TestDraw_errors(t *testing.T) {
	var buf bytes.Buffer
	if err := Draw(&buf, 100); err == nil {
		t.Error("expected error for no layers")
	}
	a := overlay.NewLayer("a", nil, &overlay.Feature{Geom: square(0, 0, 1, 1)})
	if err := Draw(&buf, 0, Style{Layer: a}); err == nil {
		t.Error("expected error for zero width")
	}
	a.Features[0].Attributes = map[string]interface{}{"v": "high"}
	if err := Draw(&buf, 100, Style{Layer: a, ColorBy: "v"}); err == nil {
		t.Error("expected error for non-numeric attribute")
	}
}
