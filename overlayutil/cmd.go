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

// Package overlayutil contains the command-line interface for the
// polygon overlay engine.
package overlayutil

import (
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/overlay"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the overlay
	// commands.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "a",
			usage: `
              a is the path to the first input layer, in shapefile (.shp)
              or GeoJSON (.geojson or .json) format.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "b",
			usage: `
              b is the path to the second input layer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "mode",
			usage: `
              mode is the overlay operation to perform. Valid options are
              intersection, union, difference, symmetric_difference,
              and identity.`,
			shorthand:  "m",
			defaultVal: "intersection",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is the path where the output is written. Layers can be
              written as shapefiles (.shp) or GeoJSON (.geojson or .json);
              maps are written as PNG images. Environment variables
              in the path are expanded.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), dissolveCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "input",
			usage: `
              input is the path to the layer to dissolve.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{dissolveCmd.Flags()},
		},
		{
			name: "by",
			usage: `
              by is the attribute whose values features are grouped by
              when dissolving. If it is empty, all features are
              dissolved into one.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{dissolveCmd.Flags()},
		},
		{
			name: "aggfunc",
			usage: `
              aggfunc specifies how the other attributes of dissolved
              features are combined. It can be "first" to keep the values
              of the first feature in each group, or "sum", "mean", "min",
              or "max" to combine numeric attributes.`,
			defaultVal: "first",
			flagsets:   []*pflag.FlagSet{dissolveCmd.Flags()},
		},
		{
			name: "layers",
			usage: `
              layers are the paths to the layers to draw, in drawing order.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "color-by",
			usage: `
              color-by is a numeric attribute that the features of the first
              layer are colored by. If it is empty, features are drawn in gray.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "width",
			usage: `
              width is the width of the map in pixels.`,
			defaultVal: 800,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "tolerance",
			usage: `
              tolerance is the size of the grid that vertices are snapped to
              before clipping, in the units of the layer projection. Output
              polygons narrower than the tolerance are discarded. Zero
              disables snapping.`,
			defaultVal: overlay.DefaultTolerance,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "lenient",
			usage: `
              lenient specifies whether invalid input rings are repaired
              (true) or cause the operation to fail (false).`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "strict",
			usage: `
              strict specifies whether the operation fails when a pair of
              features cannot be processed after all retries. Otherwise the
              failure is logged and the pair is left out of the output.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "max-retries",
			usage: `
              max-retries is the number of times a failed pairwise computation
              is retried with a coarser snapping grid.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of concurrent workers. If it is zero, the
              number of processors is used.`,
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "batch-size",
			usage: `
              batch-size is the number of features processed between checks
              for cancellation.`,
			defaultVal: 256,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "suffixes",
			usage: `
              suffixes are appended to attribute names that appear in both
              input layers: the first for the first layer and the second for the
              second layer.`,
			defaultVal: []string{"_1", "_2"},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "timeout",
			usage: `
              timeout is the maximum time an operation may run, for example
              "90s" or "1h". When it is reached, the features completed so far
              are written and the command fails. Zero means no limit.`,
			defaultVal: "0s",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log-level",
			usage: `
              log-level is the minimum severity of logged messages. Valid
              options are debug, info, warning, and error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log-file",
			usage: `
              log-file is the path where log messages are written in addition
              to standard output. If it is empty, the log is written next to the
              output file, with the extension ".log".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("OVERLAY")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(dissolveCmd)
	Root.AddCommand(renderCmd)
	Root.AddCommand(batchCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("overlay: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "overlay",
	Short: "A polygon overlay engine.",
	Long: `overlay computes overlays of attributed polygon layers: intersection,
union, difference, symmetric difference, and identity. Use the subcommands
specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'OVERLAY_var' where 'var' is the
name of the variable to be set, with dashes replaced by underscores.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of overlay.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("overlay v%s\n", overlay.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd overlays two layers.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Overlay two layers.",
	Long: `run overlays the layers given by the --a and --b flags using the
operation given by --mode and writes the result to --output. Problems with
individual features are logged as warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := overlay.ParseMode(Cfg.GetString("mode"))
		if err != nil {
			return err
		}
		a, err := checkInputFile("a", Cfg.GetString("a"))
		if err != nil {
			return err
		}
		b, err := checkInputFile("b", Cfg.GetString("b"))
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("output"), layerExtensions)
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cmd, checkLogFile(Cfg.GetString("log-file"), outputFile), Cfg.GetString("log-level"))
		if err != nil {
			return err
		}
		defer closeLog()
		o, err := overlayOptions(Cfg, log)
		if err != nil {
			return err
		}
		return Run(log, a, b, outputFile, mode, o, Cfg.GetDuration("timeout"))
	},
	DisableAutoGenTag: true,
}

// dissolveCmd merges the features of a layer.
var dissolveCmd = &cobra.Command{
	Use:   "dissolve",
	Short: "Dissolve a layer.",
	Long: `dissolve merges the features of the layer given by --input that share
a value of the attribute given by --by and writes the result to --output.
The other attributes of each group are combined as specified by --aggfunc.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, err := overlay.ParseAggregation(Cfg.GetString("aggfunc"))
		if err != nil {
			return err
		}
		input, err := checkInputFile("input", Cfg.GetString("input"))
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("output"), layerExtensions)
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cmd, checkLogFile(Cfg.GetString("log-file"), outputFile), Cfg.GetString("log-level"))
		if err != nil {
			return err
		}
		defer closeLog()
		o, err := overlayOptions(Cfg, log)
		if err != nil {
			return err
		}
		return Dissolve(log, input, Cfg.GetString("by"), agg, outputFile, o, Cfg.GetDuration("timeout"))
	},
	DisableAutoGenTag: true,
}

// renderCmd draws layers as a map.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw layers as a map.",
	Long: `render draws the layers given by --layers, in order, and writes the
map to --output as a PNG image.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		layers := expandStringSlice(Cfg.GetStringSlice("layers"))
		if len(layers) == 0 {
			return fmt.Errorf("overlay: you need to specify at least one layer to render (for example: --layers=result.shp)")
		}
		for i, l := range layers {
			var err error
			if layers[i], err = checkInputFile("layers", l); err != nil {
				return err
			}
		}
		outputFile, err := checkOutputFile(Cfg.GetString("output"), []string{".png"})
		if err != nil {
			return err
		}
		return Render(layers, Cfg.GetString("color-by"), outputFile, Cfg.GetInt("width"))
	},
	DisableAutoGenTag: true,
}

// batchCmd runs the overlay jobs in a job file.
var batchCmd = &cobra.Command{
	Use:   "batch jobfile.toml",
	Short: "Run several overlay jobs.",
	Long: `batch runs the overlay jobs listed in a TOML job file, for example:

    [[Job]]
    A = "counties.shp"
    B = "watersheds.shp"
    Mode = "intersection"
    Output = "out/counties_watersheds.shp"

Relative paths are relative to the directory of the job file. Each input
layer is read only once, even if it is used by several jobs. Engine
options such as --tolerance apply to all jobs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := ReadJobs(args[0])
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cmd, checkLogFile(Cfg.GetString("log-file"), args[0]), Cfg.GetString("log-level"))
		if err != nil {
			return err
		}
		defer closeLog()
		o, err := overlayOptions(Cfg, log)
		if err != nil {
			return err
		}
		return Batch(log, jobs, o, Cfg.GetDuration("timeout"))
	},
	DisableAutoGenTag: true,
}
