package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose    bool
	configPath string
	noTray     bool
)

func init() {
	pflag.BoolVarP(&verbose, "verbose", "v", false, "show verbose logs (useful for debugging the OBS connection)")
	pflag.StringVar(&configPath, "config", "", "path to the config file (default config.yaml in the working directory)")
	pflag.BoolVar(&noTray, "no-tray", false, "run without the tray icon")
	pflag.Parse()
}

func main() {
	logger, err := obsdeck.NewLogger(buildType, verbose)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	if verbose {
		named.Debug("Verbose flag provided, all log messages will be shown")
	}

	d, err := obsdeck.NewObsdeck(logger, obsdeck.Options{
		Verbose:    verbose,
		ConfigPath: configPath,
		NoTray:     noTray,
	})
	if err != nil {
		named.Fatalw("Failed to create obsdeck object", "error", err)
	}

	if buildType != "" && (versionTag != "" || gitCommit != "") {
		identifier := gitCommit
		if versionTag != "" {
			identifier = versionTag
		}

		versionString := fmt.Sprintf("Version %s-%s", buildType, identifier)
		d.SetVersion(versionString)
	}

	if err = d.Initialize(); err != nil {
		named.Fatalw("Failed to initialize obsdeck", "error", err)
	}
}
