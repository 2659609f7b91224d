/*
Copyright © 2019 the overlay authors.
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

package overlayutil

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlay"
	"github.com/spatialmodel/overlay/internal/hash"
	"github.com/spatialmodel/overlay/layerio"
	"github.com/spatialmodel/overlay/render"
)

// withTimeout returns a context that is cancelled after timeout, or one
// that is never cancelled if timeout is not positive.
func withTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// baseName returns the name of the file at path without its extension.
func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Run overlays the layers in files a and b using the specified mode and
// writes the result to outputFile. If the operation is cancelled because
// the timeout is reached, the features completed so far are written
// before the error is returned.
func Run(log logrus.FieldLogger, a, b, outputFile string, mode overlay.Mode, o *overlay.Options, timeout time.Duration) error {
	startTime := time.Now()
	la, err := layerio.Open(a)
	if err != nil {
		return err
	}
	lb, err := layerio.Open(b)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"a":          a,
		"b":          b,
		"a_features": la.Len(),
		"b_features": lb.Len(),
	}).Info("read input layers")

	ctx, cancel := withTimeout(timeout)
	defer cancel()
	return overlayAndSave(ctx, log, la, lb, mode, o, outputFile, startTime)
}

// overlayAndSave overlays la and lb and writes the result to outputFile.
// A partial result is written if ctx is cancelled.
func overlayAndSave(ctx context.Context, log logrus.FieldLogger, la, lb *overlay.Layer, mode overlay.Mode, o *overlay.Options, outputFile string, startTime time.Time) error {
	r, err := overlay.Overlay(ctx, la, lb, mode, o)
	if r == nil {
		return err
	}
	logDiagnostics(log, r.Diagnostics)
	if werr := layerio.Save(outputFile, r.Layer(baseName(outputFile))); werr != nil {
		return werr
	}
	log.WithFields(logrus.Fields{
		"output":    outputFile,
		"mode":      mode,
		"features":  len(r.Features),
		"area":      r.Area(),
		"digest":    hash.Digest(r.Features),
		"cancelled": r.Cancelled,
		"duration":  time.Since(startTime),
	}).Info("wrote result")
	return err
}

// logDiagnostics logs the non-fatal problems encountered during an
// overlay.
func logDiagnostics(log logrus.FieldLogger, diags []error) {
	for _, d := range diags {
		log.Warn(d)
	}
	if len(diags) > 0 {
		log.WithField("count", len(diags)).Warn("some features were repaired or left out")
	}
}

// Dissolve merges the features of the layer in file input that share a
// value of attribute by, or all features if by is empty, combining their
// other attributes using agg, and writes the result to outputFile.
func Dissolve(log logrus.FieldLogger, input, by string, agg overlay.Aggregation, outputFile string, o *overlay.Options, timeout time.Duration) error {
	l, err := layerio.Open(input)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(timeout)
	defer cancel()
	d, diags, err := overlay.Dissolve(ctx, l, by, agg, o)
	if d == nil {
		return err
	}
	logDiagnostics(log, diags)
	d.Name = baseName(outputFile)
	if werr := layerio.Save(outputFile, d); werr != nil {
		return werr
	}
	log.WithFields(logrus.Fields{
		"input":    input,
		"by":       by,
		"aggfunc":  agg,
		"output":   outputFile,
		"features": d.Len(),
		"area":     d.Area(),
	}).Info("wrote dissolved layer")
	return err
}

// layerColors are the outline colors of layers after the first.
var layerColors = []color.NRGBA{
	{R: 200, G: 30, B: 30, A: 255},
	{R: 30, G: 30, B: 200, A: 255},
	{R: 30, G: 160, B: 30, A: 255},
}

// Render draws the layers in the listed files to outputFile as a PNG
// image that is width pixels wide. The first layer is filled, colored by
// attribute colorBy if it is not empty; later layers are drawn as outlines.
func Render(layers []string, colorBy, outputFile string, width int) error {
	styles := make([]render.Style, len(layers))
	for i, path := range layers {
		l, err := layerio.Open(path)
		if err != nil {
			return err
		}
		styles[i].Layer = l
		if i == 0 {
			styles[i].Stroke = color.NRGBA{A: 255}
			styles[i].Fill = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
			styles[i].ColorBy = colorBy
		} else {
			styles[i].Stroke = layerColors[(i-1)%len(layerColors)]
		}
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("overlay: %v", err)
	}
	if err := render.Draw(f, width, styles...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
