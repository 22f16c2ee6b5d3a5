package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"roadsurvey/internal/exifgps"
	"roadsurvey/pkg/geo"
)

var gpsJSON bool

type gpsResult struct {
	File      string   `json:"file"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	MapURL    string   `json:"map_url,omitempty"`
	Error     string   `json:"error,omitempty"`
}

var gpsCmd = &cobra.Command{
	Use:   "gps [file]...",
	Short: "Print the GPS position stored in photos",
	Long: `Reads the EXIF GPS tags of JPEG or PNG photos and prints the decimal
latitude and longitude with an OpenStreetMap link.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		results := make([]gpsResult, 0, len(args))
		failed := 0

		for _, path := range args {
			res := locateFile(path)
			if res.Error != "" {
				failed++
			}
			results = append(results, res)
		}

		if gpsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(out, "%s: %s\n", r.File, r.Error)
					continue
				}
				fmt.Fprintf(out, "%s: %s %s\n", r.File, geo.Format(*r.Latitude, *r.Longitude), r.MapURL)
			}
		}

		if failed == len(args) {
			return fmt.Errorf("no gps position found in %d file(s)", failed)
		}
		return nil
	},
}

func locateFile(path string) gpsResult {
	res := gpsResult{File: path}
	f, err := os.Open(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	c, err := exifgps.Resolve(f)
	if err != nil {
		slog.Debug("gps lookup failed", "file", path, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Latitude, res.Longitude = &c.Lat, &c.Lon
	res.MapURL = geo.OSMURL(c.Lat, c.Lon)
	return res
}

func init() {
	gpsCmd.Flags().BoolVar(&gpsJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(gpsCmd)
}
