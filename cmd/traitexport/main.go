// Command traitexport aggregates trait GeoJSON files into a CSV table.
//
// Files are read from the local disk, or from the data service when -api is
// given.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/paulmach/orb/geojson"

	"gemini-viewer/internal/api"
	"gemini-viewer/internal/logging"
	"gemini-viewer/internal/traits"
)

func main() {
	apiURL := flag.String("api", "", "Data service URL; files are then paths on the service")
	dir := flag.String("dir", "", "Service directory to export every .geojson file from (with -api)")
	outPath := flag.String("out", "", "Output CSV path (default: stdout)")
	centroid := flag.Bool("centroid", false, "Add lon/lat columns from feature centroids")
	summary := flag.Bool("summary", false, "Write per-column statistics instead of rows")
	server := flag.Bool("server", false, "Use the service's own CSV conversion for a single file (with -api)")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logging.Init(logging.Options{Level: *logLevel})

	files := flag.Args()
	if len(files) == 0 && *dir == "" {
		fmt.Println("Usage: traitexport [-api URL [-dir DIR] [-server]] [-centroid] [-summary] [-out traits.csv] [file.geojson ...]")
		os.Exit(1)
	}

	out := io.Writer(os.Stdout)
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	var collections []*geojson.FeatureCollection
	if *apiURL != "" {
		client, err := api.New(*apiURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid service URL: %v\n", err)
			os.Exit(1)
		}
		if *server {
			if len(files) != 1 {
				fmt.Fprintln(os.Stderr, "-server takes exactly one file")
				os.Exit(1)
			}
			data, err := client.DownloadCSV(ctx, files[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Download failed: %v\n", err)
				os.Exit(1)
			}
			if _, err := out.Write(data); err != nil {
				fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
		collections, err = fetchRemote(ctx, client, *dir, files)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	} else {
		for _, f := range files {
			fc, err := traits.ReadFile(f)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			collections = append(collections, fc)
		}
	}

	table, err := traits.Build(*centroid, collections...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	logging.Info(logging.Fields{"files": len(collections), "rows": len(table.Rows), "columns": len(table.Columns)}, "[traitexport] table built")

	if *summary {
		table = traits.SummaryTable(traits.Summarize(table))
	}
	if err := traits.WriteCSV(out, table); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
}

// fetchRemote loads the named files, plus every .geojson file in dir, from
// the data service.
func fetchRemote(ctx context.Context, client *api.Client, dir string, files []string) ([]*geojson.FeatureCollection, error) {
	paths := append([]string(nil), files...)
	if dir != "" {
		names, err := client.ListFiles(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if strings.HasSuffix(strings.ToLower(n), ".geojson") {
				paths = append(paths, path.Join(dir, n))
			}
		}
	}
	var out []*geojson.FeatureCollection
	for _, p := range paths {
		fc, err := client.GetGeoJSON(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		out = append(out, fc)
	}
	return out, nil
}
