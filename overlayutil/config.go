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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlay"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// layerExtensions are the file extensions of the supported layer formats.
var layerExtensions = []string{".shp", ".geojson", ".json"}

// expandStringSlice expands the environment variables in each element of s.
func expandStringSlice(s []string) []string {
	o := make([]string, 0, len(s))
	for _, ss := range s {
		if ss = strings.TrimSpace(ss); ss != "" {
			o = append(o, os.ExpandEnv(ss))
		}
	}
	return o
}

// checkInputFile makes sure that the input file f, given by the
// configuration variable name, has been specified and exists.
func checkInputFile(name, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("overlay: you need to specify an input file using the %s configuration variable (for example: --%s=layer.shp)", name, name)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("overlay: problem with %s input file: %v", name, err)
	}
	return f, nil
}

// checkOutputFile makes sure that the output file has been specified, has
// one of the given extensions, and that its directory exists.
func checkOutputFile(f string, extensions []string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`overlay: you need to specify an output file configuration variable (for example: --output="output%s")`, extensions[0])
	}
	f = os.ExpandEnv(f)
	ext := strings.ToLower(filepath.Ext(f))
	valid := false
	for _, e := range extensions {
		if ext == e {
			valid = true
			break
		}
	}
	if !valid {
		return f, fmt.Errorf("overlay: output file %s has invalid extension %q; valid options are %s", f, ext, strings.Join(extensions, ", "))
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("overlay: the output directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile returns logFile, or a path next to outputFile if logFile
// is empty.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// newLogger returns a logger that writes to the output of cmd and to
// logFile. The returned function closes the log file.
func newLogger(cmd *cobra.Command, logFile, level string) (*logrus.Logger, func(), error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("overlay: invalid log-level: %v", err)
	}
	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("overlay: problem creating log file: %v", err)
	}
	log := logrus.New()
	log.Out = io.MultiWriter(cmd.OutOrStdout(), f)
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = lvl
	return log, func() { f.Close() }, nil
}

// overlayOptions returns the engine options specified in cfg.
func overlayOptions(cfg *viper.Viper, log logrus.FieldLogger) (*overlay.Options, error) {
	o := overlay.DefaultOptions()
	var err error
	if o.Tolerance, err = cast.ToFloat64E(cfg.Get("tolerance")); err != nil {
		return nil, fmt.Errorf("overlay: invalid tolerance: %v", err)
	}
	if o.MaxRetries, err = cast.ToIntE(cfg.Get("max-retries")); err != nil {
		return nil, fmt.Errorf("overlay: invalid max-retries: %v", err)
	}
	if o.Workers, err = cast.ToIntE(cfg.Get("workers")); err != nil {
		return nil, fmt.Errorf("overlay: invalid workers: %v", err)
	}
	if o.BatchSize, err = cast.ToIntE(cfg.Get("batch-size")); err != nil {
		return nil, fmt.Errorf("overlay: invalid batch-size: %v", err)
	}
	lenient, err := cast.ToBoolE(cfg.Get("lenient"))
	if err != nil {
		return nil, fmt.Errorf("overlay: invalid lenient: %v", err)
	}
	if !lenient {
		o.Validity = overlay.Strict
	}
	if o.Strict, err = cast.ToBoolE(cfg.Get("strict")); err != nil {
		return nil, fmt.Errorf("overlay: invalid strict: %v", err)
	}
	suffixes := cfg.GetStringSlice("suffixes")
	if len(suffixes) != 2 {
		return nil, fmt.Errorf("overlay: suffixes must have 2 elements but has %d: %v", len(suffixes), suffixes)
	}
	o.Suffixes = [2]string{suffixes[0], suffixes[1]}
	if log != nil {
		o.Log = log
	}
	return o, nil
}
