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
	"encoding/json"
	"fmt"
	"io"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/spatialmodel/overlay"
)

type featureCollection struct {
	Type     string     `json:"type"`
	Name     string     `json:"name,omitempty"`
	CRS      *crs       `json:"crs,omitempty"`
	Fields   []string   `json:"fields,omitempty"`
	Features []*feature `json:"features"`
}

type crs struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type feature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   *geojson.Geometry      `json:"geometry"`
}

// ReadGeoJSON reads a GeoJSON FeatureCollection of Polygon and MultiPolygon
// features. The projection definition, if any, is read from the "name"
// property of the "crs" member. Numbers are read as float64.
func ReadGeoJSON(r io.Reader) (*overlay.Layer, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("layerio: decoding GeoJSON: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("layerio: GeoJSON type is %q; it must be FeatureCollection", fc.Type)
	}
	l := &overlay.Layer{Name: fc.Name, Fields: fc.Fields}
	if fc.CRS != nil {
		sr, err := parseProjection(fc.CRS.Properties.Name)
		if err != nil {
			return nil, fmt.Errorf("layerio: parsing GeoJSON crs: %v", err)
		}
		l.SR = sr
		l.Projection = fc.CRS.Properties.Name
	}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("layerio: GeoJSON feature %d has no geometry", i)
		}
		g, err := fromGeoJSON(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("layerio: GeoJSON feature %d: %v", i, err)
		}
		attrs := f.Properties
		if attrs == nil {
			attrs = make(map[string]interface{})
		}
		l.Features = append(l.Features, &overlay.Feature{Geom: g, Attributes: attrs})
	}
	return l, nil
}

func fromGeoJSON(g *geojson.Geometry) (geom.Geom, error) {
	if g.Type != "MultiPolygon" {
		return geojson.FromGeoJSON(g)
	}
	parts, ok := g.Coordinates.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid MultiPolygon coordinates")
	}
	mp := make(geom.MultiPolygon, len(parts))
	for i, c := range parts {
		p, err := geojson.FromGeoJSON(&geojson.Geometry{Type: "Polygon", Coordinates: c})
		if err != nil {
			return nil, err
		}
		mp[i] = p.(geom.Polygon)
	}
	return mp, nil
}

// WriteGeoJSON writes l to w as a GeoJSON FeatureCollection. The layer
// projection is written as the "name" property of the "crs" member, and the
// column order is kept in a "fields" member.
func WriteGeoJSON(w io.Writer, l *overlay.Layer) error {
	cols := l.Columns()
	fc := featureCollection{
		Type:     "FeatureCollection",
		Name:     l.Name,
		Fields:   cols,
		Features: make([]*feature, len(l.Features)),
	}
	if l.Projection != "" {
		fc.CRS = &crs{Type: "name"}
		fc.CRS.Properties.Name = l.Projection
	}
	for i, f := range l.Features {
		g, err := toGeoJSON(f.Geom)
		if err != nil {
			return fmt.Errorf("layerio: encoding feature %d: %v", i, err)
		}
		props := make(map[string]interface{}, len(cols))
		for _, c := range cols {
			props[c] = f.Attributes[c]
		}
		fc.Features[i] = &feature{Type: "Feature", Properties: props, Geometry: g}
	}
	e := json.NewEncoder(w)
	if err := e.Encode(fc); err != nil {
		return fmt.Errorf("layerio: writing GeoJSON: %v", err)
	}
	return nil
}

func toGeoJSON(g geom.Geom) (*geojson.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	mp, ok := g.(geom.MultiPolygon)
	if !ok {
		return geojson.ToGeoJSON(g)
	}
	coords := make([]interface{}, len(mp))
	for i, p := range mp {
		pg, err := geojson.ToGeoJSON(p)
		if err != nil {
			return nil, err
		}
		coords[i] = pg.Coordinates
	}
	return &geojson.Geometry{Type: "MultiPolygon", Coordinates: coords}, nil
}
