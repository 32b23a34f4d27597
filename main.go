// Package main provides the entry point for the GEMINI detection viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2/app"
	"github.com/joho/godotenv"

	"gemini-viewer/internal/api"
	viewerapp "gemini-viewer/internal/app"
	"gemini-viewer/internal/logging"
	"gemini-viewer/internal/version"
	"gemini-viewer/ui/mainwindow"
	"gemini-viewer/ui/prefs"
)

const appID = "org.gemini.viewer"

func main() {
	apiURL := flag.String("api", "", "Data service URL (overrides preferences)")
	resultID := flag.String("result", "", "Inference result ID to open on start")
	logLevel := flag.String("log-level", "", "Log level (overrides preferences)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// A missing .env file is normal.
	_ = godotenv.Load()

	appPrefs := prefs.Load()
	settings, err := appPrefs.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid preferences in %s: %v\n", appPrefs.Path(), err)
		os.Exit(1)
	}
	if *apiURL != "" {
		settings.APIURL = *apiURL
	}
	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}

	logging.Init(logging.Options{Level: settings.LogLevel, File: settings.LogFile})
	logging.Info(logging.Fields{"version": version.String(), "api": settings.APIURL}, "[main] starting viewer")

	client, err := api.New(settings.APIURL, api.WithTimeout(settings.Timeout))
	if err != nil {
		logging.Error(logging.Fields{"error": err.Error()}, "[main] invalid data service URL")
		os.Exit(1)
	}

	state := mainwindow.NewState(client, settings)

	fyneApp := app.NewWithID(appID)
	fyneApp.Settings().SetTheme(&viewerapp.ViewerTheme{})

	win := mainwindow.New(fyneApp, state, client, appPrefs)
	win.LoadResults(context.Background())
	if *resultID != "" {
		openByID(win, client, *resultID)
	}

	win.ShowAndRun()
}

// openByID looks the result up in the service listing and opens it.
func openByID(win *mainwindow.MainWindow, client *api.Client, id string) {
	go func() {
		results, err := client.ListInferenceResults(context.Background())
		if err != nil {
			logging.Error(logging.Fields{"error": err.Error()}, "[main] could not list inference results")
			return
		}
		for _, r := range results {
			if r.ID == id {
				win.OpenResult(r)
				return
			}
		}
		logging.Warn(logging.Fields{"result": id}, "[main] inference result not found")
	}()
}
