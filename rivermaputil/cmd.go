/*
Copyright © 2019 the RiverMAP authors.
This file is part of RiverMAP.

RiverMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RiverMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RiverMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package rivermaputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/gobra"
	"github.com/lnashier/viper"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/rivermap"
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
	// Options are the configuration options available to RiverMAP.
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
			name: "RiverFile",
			usage: `
              RiverFile is the path to the table of river mouth locations and
              discharge values. It can be a comma-separated-value (.csv) file,
              a Microsoft Excel (.xlsx) file, or a point shapefile (.shp). The
              table needs columns for the mouth longitude and latitude, the
              plume spread (` + rivermap.SpreadColumn + `, in grid cells), and each of the
              variables listed in Variables. It can include environment
              variables and can be an http(s) URL or a blob storage location
              (gs://, s3://, or file://).`,
			shorthand:  "r",
			defaultVal: "${GOPATH}/src/github.com/spatialmodel/rivermap/testdata/20major_rivers.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RiverSheet",
			usage: `
              RiverSheet is the name of the worksheet that holds the river
              table when RiverFile is an Excel file.`,
			defaultVal: "Sheet1",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "LonColumn",
			usage: `
              LonColumn is the name of the river table column holding the
              longitude of each river mouth [degrees].`,
			defaultVal: "mouth_lon",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "LatColumn",
			usage: `
              LatColumn is the name of the river table column holding the
              latitude of each river mouth [degrees].`,
			defaultVal: "mouth_lat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "NameColumn",
			usage: `
              NameColumn is the name of the river table column holding the
              river names. The column is optional; rivers without names are
              identified by their row number in log messages.`,
			defaultVal: "basinname",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "GridFile",
			usage: `
              GridFile is the path to a netCDF file holding the ocean model
              grid: two-dimensional longitude, latitude, and land/sea mask
              variables (1=ocean, 0=land). One-dimensional longitude and latitude
              coordinate variables are also accepted. It can include environment
              variables and can be an http(s) URL or a blob storage location.`,
			shorthand:  "g",
			defaultVal: "rivermap_grid.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Grid.LonVar",
			usage: `
              Grid.LonVar is the name of the longitude variable in GridFile.`,
			defaultVal: "lon",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Grid.LatVar",
			usage: `
              Grid.LatVar is the name of the latitude variable in GridFile.`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Grid.MaskVar",
			usage: `
              Grid.MaskVar is the name of the land/sea mask variable in GridFile.`,
			defaultVal: "mask",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Variables",
			usage: `
              Variables are the names of the river table columns to spread
              onto the grid. One output field is created for each.`,
			shorthand:  "v",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "ProximityKm",
			usage: `
              ProximityKm is the maximum distance [km] between a river mouth
              and the nearest ocean cell. Rivers farther than this from
              the ocean are skipped.`,
			defaultVal: rivermap.DefaultProximityKm,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "MaxIterations",
			usage: `
              MaxIterations is the maximum number of dilation iterations used
              when growing each river plume.`,
			defaultVal: rivermap.DefaultMaxIterations,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "MergeMethod",
			usage: `
              MergeMethod specifies how overlapping plumes are combined.
              Currently "` + rivermap.AverageMerge + `" is the only available method.`,
			defaultVal: rivermap.AverageMerge,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "Connectivity",
			usage: `
              Connectivity is the number of neighbors each plume cell spreads
              to: 4 (edges only) or 8 (edges and corners).`,
			defaultVal: int(rivermap.EightConnected),
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "NumWorkers",
			usage: `
              NumWorkers is the number of rivers to process at once.
              If zero, the number of processors is used.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "DerivedVariables",
			usage: `
              DerivedVariables specifies additional output fields calculated
              from the fields in Variables. The keys are the names of the new
              fields and the values are expressions, which can use the
              functions exp(x), log(x), max(x, y), and min(x, y). For example:
              {"TotalN": "NO3 + NH4"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the output netCDF file should be
              written. It can include environment variables and can be a blob
              storage location, in which case the file is uploaded when the
              run finishes.`,
			shorthand:  "o",
			defaultVal: "rivermap_output.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "MouthsFile",
			usage: `
              MouthsFile, if specified, is the path where a point shapefile of
              the grid cells each river was assigned to should be written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left empty, the log
              file will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RegularGrid.Lon0",
			usage: `
              RegularGrid.Lon0 is the longitude of the westernmost cell centers
              of the grid created by the grid command [degrees].`,
			defaultVal: -179.5,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RegularGrid.Lon1",
			usage: `
              RegularGrid.Lon1 is the longitude that all cell centers of the
              grid created by the grid command are west of [degrees].`,
			defaultVal: 180.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RegularGrid.Dlon",
			usage: `
              RegularGrid.Dlon is the cell width of the grid created by the
              grid command [degrees].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RegularGrid.Lat0",
			usage: `
              RegularGrid.Lat0 is the latitude of the southernmost cell centers
              of the grid created by the grid command [degrees].`,
			defaultVal: -89.5,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RegularGrid.Lat1",
			usage: `
              RegularGrid.Lat1 is the latitude that all cell centers of the
              grid created by the grid command are south of [degrees].`,
			defaultVal: 90.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "RegularGrid.Dlat",
			usage: `
              RegularGrid.Dlat is the cell height of the grid created by the
              grid command [degrees].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "LandMask",
			usage: `
              LandMask is the path to a GeoJSON file with a polygon or
              multipolygon of the land areas, in longitude/latitude coordinates.
              Cells of the grid created by the grid command whose centers are
              within the polygon are marked as land. If it is empty,
              all cells are ocean.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
		{
			name: "GridOutput",
			usage: `
              GridOutput is the path where the grid command should write the
              grid netCDF file. It can be a blob storage location.`,
			defaultVal: "rivermap_grid.nc",
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), configCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("RIVERMAP")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
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
	Root.AddCommand(gridCmd)
	Root.AddCommand(configCmd)
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for msg := range outChan {
			fmt.Println(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("rivermap: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "rivermap",
	Short: "A river discharge to ocean forcing converter.",
	Long: `RiverMAP converts point river discharge data at river mouths into
gridded fields for ocean models. Each river mouth is assigned to the nearest
ocean grid cell, its discharge is spread over a plume of nearby ocean cells,
and overlapping plumes are combined.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'RIVERMAP_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of RiverMAP.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("RiverMAP v%s\n", rivermap.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that creates gridded fields from a river table.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create gridded river fields.",
	Long: `run reads the river table in RiverFile and the ocean grid in GridFile,
spreads each of the Variables from every river mouth over a plume of
nearby ocean cells, and writes the resulting fields to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		ctx := context.TODO()

		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		buildConfig, err := BuildConfig(Cfg)
		if err != nil {
			return err
		}
		derived, err := checkDerivedVariables(GetStringMapString("DerivedVariables", Cfg), buildConfig.Variables)
		if err != nil {
			return err
		}
		table := RiverTable{
			File:       maybeDownload(ctx, os.ExpandEnv(Cfg.GetString("RiverFile")), outChan),
			Sheet:      os.ExpandEnv(Cfg.GetString("RiverSheet")),
			LonColumn:  os.ExpandEnv(Cfg.GetString("LonColumn")),
			LatColumn:  os.ExpandEnv(Cfg.GetString("LatColumn")),
			NameColumn: os.ExpandEnv(Cfg.GetString("NameColumn")),
		}
		grid := GridFile{
			File:    maybeDownload(ctx, os.ExpandEnv(Cfg.GetString("GridFile")), outChan),
			LonVar:  os.ExpandEnv(Cfg.GetString("Grid.LonVar")),
			LatVar:  os.ExpandEnv(Cfg.GetString("Grid.LatVar")),
			MaskVar: os.ExpandEnv(Cfg.GetString("Grid.MaskVar")),
		}

		return Run(
			cmd,
			checkLogFile(os.ExpandEnv(Cfg.GetString("LogFile")), outputFile),
			outputFile,
			os.ExpandEnv(Cfg.GetString("MouthsFile")),
			table,
			grid,
			buildConfig,
			derived,
		)
	},
	DisableAutoGenTag: true,
}

// gridCmd is a command that creates and saves a regular longitude/latitude grid.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create a regular grid",
	Long: `grid creates a regular longitude/latitude grid as specified by the
RegularGrid configuration variables, marks the cells within LandMask as land,
and saves it to GridOutput. The saved grid can then be used as the GridFile
of future runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		outputFile, err := checkOutputFile(Cfg.GetString("GridOutput"))
		if err != nil {
			return err
		}
		var landMask string
		if m := os.ExpandEnv(Cfg.GetString("LandMask")); m != "" {
			landMask = maybeDownload(context.TODO(), m, outChan)
		}
		return Grid(
			cmd,
			outputFile,
			Cfg.GetFloat64("RegularGrid.Lon0"),
			Cfg.GetFloat64("RegularGrid.Lon1"),
			Cfg.GetFloat64("RegularGrid.Dlon"),
			Cfg.GetFloat64("RegularGrid.Lat0"),
			Cfg.GetFloat64("RegularGrid.Lat1"),
			Cfg.GetFloat64("RegularGrid.Dlat"),
			landMask,
		)
	},
	DisableAutoGenTag: true,
}

// configCmd is a command that prints the current configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration",
	Long: `config prints the configuration that the other commands would use,
combining the defaults, the configuration file, environment variables, and
command-line arguments. The output is in TOML format and can be saved and
used as a configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := toml.NewEncoder(cmd.OutOrStdout())
		if err := e.Encode(configTree(Cfg)); err != nil {
			return fmt.Errorf("rivermaputil: encoding configuration: %v", err)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// configTree returns the current value of every option except for
// "config", nested by the dots in the option names.
func configTree(cfg *viper.Viper) map[string]interface{} {
	tree := make(map[string]interface{})
	for _, option := range options {
		if option.name == "config" {
			continue
		}
		var v interface{}
		switch option.defaultVal.(type) {
		case string:
			v = cfg.GetString(option.name)
		case []string:
			v = cfg.GetStringSlice(option.name)
		case int:
			v = cfg.GetInt(option.name)
		case float64:
			v = cfg.GetFloat64(option.name)
		case map[string]string:
			v = GetStringMapString(option.name, cfg)
		}
		m := tree
		parts := strings.Split(option.name, ".")
		for _, p := range parts[:len(parts)-1] {
			sub, ok := m[p].(map[string]interface{})
			if !ok {
				sub = make(map[string]interface{})
				m[p] = sub
			}
			m = sub
		}
		m[parts[len(parts)-1]] = v
	}
	return tree
}

// StartWebServer starts the web server.
func StartWebServer() {
	setConfig() // Ignore any errors for now.

	http.HandleFunc("/setConfig", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		configFile := r.Form["config"][0]
		Root.Flags().Set("config", configFile)
		err := setConfig()
		if err != nil {
			http.Error(w, err.Error(), 204)
			return
		}
		config := make(map[string]interface{})
		for _, option := range options {
			config[option.name] = Cfg.Get(option.name)
		}
		e := json.NewEncoder(w)
		if err := e.Encode(config); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	})

	log.Println("Loading front-end...")

	for _, cmd := range []*cobra.Command{Root, versionCmd, runCmd, gridCmd, configCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	const address = "localhost:7171"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>RiverMAP</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
		.blue-border{ border: 1px solid #35c; }
	</style>
</head>
<body>
<div class="container">
	<h1>RiverMAP</h1>
	<p>Configure the river fields below.</p>
	<p>
		Color key: black=default;
		<font color="red">red</font>=error;
		<font color="green">green</font>=value from config file;
		<font color="blue">blue</font>=user entered
	</p>
	<div>
		{{.}}
	</div>
	<footer>
		© 2019 RiverMAP Authors
	</footer>
</div>

<script>
// Reload the field values when the configuration file path changes.
let allFlags = [...document.querySelectorAll('[data-name]')];
allFlags.forEach(x => {
	let inputField = x.children[0];
	inputField.addEventListener("input", e => {
		inputField.classList.remove("green-border");
		inputField.classList.add("blue-border");
	})
})

let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + address + `/setConfig?config="+configInput.value)
		.then(res => {
			if (res.status == 204) {
				configInput.classList.remove("blue-border", "green-border");
				configInput.classList.add("red-border");
				return;
			}
			if (res.status !== 200) {
				res.text().then(t => console.log("Error fetching /setConfig: ", t));
				return;
			}
			res.json().then(data => {
				configInput.classList.remove("red-border");
				for (let key in data)
					for (let f of allFlags)
						if (f.dataset.name == key) {
							let input = f.children[0];
							let newValue = JSON.stringify(data[key]).replace(/^"+|"+$/g, '');
							if (input.value != newValue) {
								input.value = newValue;
								input.classList.remove("blue-border");
								input.classList.add("green-border");
							}
						}
			})
		})
		.catch(err => console.log("Error fetching /setConfig", err))
})
</script>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: address, AllowCORS: false, HTML: output}
	log.Println("Server starting... ")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://" + address)
	server.Start()
}
