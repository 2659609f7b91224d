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

package layerio

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	"github.com/spatialmodel/overlay"
	"github.com/spf13/cast"
)

// ReadShapefile reads the polygon shapefile at path into a layer named
// after the file. If a .prj file is present, it is used to set the spatial
// reference of the layer. Numeric attributes are converted to int or float64;
// all others are kept as strings.
func ReadShapefile(path string) (*overlay.Layer, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("layerio: opening shapefile %s: %v", path, err)
	}
	defer d.Close()

	base := strings.TrimSuffix(path, filepath.Ext(path))
	l := &overlay.Layer{Name: filepath.Base(base)}
	if b, err := ioutil.ReadFile(base + ".prj"); err == nil {
		l.Projection = strings.TrimSpace(string(b))
		l.SR, err = d.SR()
		if err != nil {
			return nil, fmt.Errorf("layerio: reading projection of %s: %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("layerio: reading projection of %s: %v", path, err)
	}

	fields := d.Fields()
	l.Fields = make([]string, len(fields))
	for i, f := range fields {
		l.Fields[i] = f.String()
	}
	for {
		g, vals, more := d.DecodeRowFields(l.Fields...)
		if !more {
			break
		}
		f := &overlay.Feature{Geom: unflatten(g), Attributes: make(map[string]interface{}, len(fields))}
		for i, field := range fields {
			v, err := parseAttribute(field, vals[l.Fields[i]])
			if err != nil {
				return nil, fmt.Errorf("layerio: %s record %d field %s: %v", path, len(l.Features), l.Fields[i], err)
			}
			f.Attributes[l.Fields[i]] = v
		}
		l.Features = append(l.Features, f)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("layerio: reading shapefile %s: %v", path, err)
	}
	return l, nil
}

// parseAttribute converts a raw dBase value to a Go value according to its
// field type. Blank and starred numeric values are null.
func parseAttribute(f goshp.Field, s string) (interface{}, error) {
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	switch f.Fieldtype {
	case 'N', 'F':
		if s == "" || strings.Contains(s, "*") {
			return nil, nil
		}
		if f.Fieldtype == 'N' && f.Precision == 0 {
			return cast.ToIntE(s)
		}
		return cast.ToFloat64E(s)
	case 'L':
		switch strings.ToUpper(s) {
		case "T", "Y":
			return true, nil
		case "F", "N":
			return false, nil
		default:
			return nil, nil
		}
	default:
		return s, nil
	}
}

// maxFieldName is the longest column name a dBase file can hold.
const maxFieldName = 10

// WriteShapefile writes l to a polygon shapefile at path, along with a
// .prj file if l has a projection. Existing files are overwritten.
// Column names longer than the 10 characters allowed by the format are
// shortened as described in fieldNames.
func WriteShapefile(path string, l *overlay.Layer) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	cols := l.Columns()
	names := fieldNames(cols)
	fields := make([]goshp.Field, len(cols))
	kinds := make([]byte, len(cols))
	for i, c := range cols {
		name := names[i]
		kinds[i] = columnKind(l, c)
		switch kinds[i] {
		case 'N':
			fields[i] = goshp.NumberField(name, 18)
		case 'F':
			fields[i] = goshp.FloatField(name, 24, 12)
		default:
			fields[i] = goshp.StringField(name, 254)
		}
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("layerio: creating shapefile %s: %v", path, err)
	}
	for i, f := range l.Features {
		vals := make([]interface{}, len(cols))
		for j, c := range cols {
			vals[j] = shpValue(kinds[j], f.Attributes[c])
		}
		if err := e.EncodeFields(flatten(f.Geom), vals...); err != nil {
			e.Close()
			return fmt.Errorf("layerio: writing feature %d to %s: %v", i, path, err)
		}
	}
	e.Close()
	if l.Projection != "" {
		if err := ioutil.WriteFile(base+".prj", []byte(l.Projection), 0644); err != nil {
			return fmt.Errorf("layerio: writing projection for %s: %v", path, err)
		}
	}
	return nil
}

// fieldNames returns dBase column names for cols. Names that fit are kept.
// Longer names are cut to fit, keeping a short trailing "_x" suffix such as
// the ones added to shared attribute names, so "population_1" becomes
// "populati_1". Names are unique ignoring case; a number replaces the end
// of a name that would otherwise repeat an earlier one.
func fieldNames(cols []string) []string {
	names := make([]string, len(cols))
	used := make(map[string]bool)
	for i, c := range cols {
		if len(c) <= maxFieldName && !used[strings.ToLower(c)] {
			names[i] = c
			used[strings.ToLower(c)] = true
		}
	}
	for i, c := range cols {
		if names[i] != "" {
			continue
		}
		name := shortenFieldName(c, maxFieldName)
		for n := 1; used[strings.ToLower(name)]; n++ {
			num := strconv.Itoa(n)
			name = shortenFieldName(c, maxFieldName-len(num)) + num
		}
		names[i] = name
		used[strings.ToLower(name)] = true
	}
	return names
}

// shortenFieldName cuts name to at most n bytes, keeping a trailing
// suffix of up to three characters after the last underscore.
func shortenFieldName(name string, n int) string {
	if len(name) <= n {
		return name
	}
	if i := strings.LastIndex(name, "_"); i > 0 && len(name)-i <= 4 && len(name)-i < n {
		suffix := name[i:]
		return name[:n-len(suffix)] + suffix
	}
	return name[:n]
}

// columnKind returns the dBase field type that can hold every value of
// column c: 'N' for integers, 'F' for other numbers, and 'C' otherwise.
func columnKind(l *overlay.Layer, c string) byte {
	kind := byte(0)
	for _, f := range l.Features {
		switch f.Attributes[c].(type) {
		case nil:
		case int, int32, int64:
			if kind == 0 {
				kind = 'N'
			}
		case float32, float64:
			if kind == 0 || kind == 'N' {
				kind = 'F'
			}
		default:
			return 'C'
		}
	}
	if kind == 0 {
		return 'C'
	}
	return kind
}

func shpValue(kind byte, v interface{}) interface{} {
	if v == nil {
		return ""
	}
	switch kind {
	case 'N':
		return cast.ToInt(v)
	case 'F':
		return cast.ToFloat64(v)
	default:
		return cast.ToString(v)
	}
}

// flatten converts g to a Polygon holding all of its rings, which is how
// multi-part polygons are stored in a shapefile.
func flatten(g geom.Geom) geom.Geom {
	mp, ok := g.(geom.MultiPolygon)
	if !ok {
		return g
	}
	var p geom.Polygon
	for _, pp := range mp {
		p = append(p, pp...)
	}
	return p
}

// unflatten splits a shapefile polygon holding several outer rings into
// a MultiPolygon.
func unflatten(g geom.Geom) geom.Geom {
	p, ok := g.(geom.Polygon)
	if !ok || len(p) < 2 {
		return g
	}
	mp := overlay.Nest(p)
	switch len(mp) {
	case 0:
		return g
	case 1:
		return mp[0]
	default:
		return mp
	}
}

// parseProjection parses a projection definition, returning nil for an
// empty definition.
func parseProjection(def string) (*proj.SR, error) {
	if strings.TrimSpace(def) == "" {
		return nil, nil
	}
	return proj.Parse(def)
}
