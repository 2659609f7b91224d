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

// Package layerio reads and writes overlay layers as shapefiles and
// GeoJSON.
package layerio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/overlay"
)

// Open reads the layer at path, choosing the format from the file
// extension: .shp for shapefiles and .geojson or .json for GeoJSON.
// GeoJSON layers without a name are named after the file.
func Open(path string) (*overlay.Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return ReadShapefile(path)
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("layerio: %v", err)
		}
		defer f.Close()
		l, err := ReadGeoJSON(f)
		if err != nil {
			return nil, err
		}
		if l.Name == "" {
			l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return l, nil
	default:
		return nil, fmt.Errorf("layerio: unsupported file type %q for %s; valid options are .shp, .geojson, and .json", filepath.Ext(path), path)
	}
}

// Save writes l to path in the format indicated by the file extension.
func Save(path string, l *overlay.Layer) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return WriteShapefile(path, l)
	case ".geojson", ".json":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("layerio: %v", err)
		}
		if err := WriteGeoJSON(f, l); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("layerio: unsupported file type %q for %s; valid options are .shp, .geojson, and .json", filepath.Ext(path), path)
	}
}
