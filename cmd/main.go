package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/adapters"
	"github.com/brettbedarf/issuefs/config"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/brettbedarf/issuefs/server"
	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		storePath  string
		verbose    int
		umount     bool
	)
	flag.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config override file")
	flag.StringVar(&storePath, "store", "", "Path to the persistent folder store (overrides "+config.EnvStorePath+")")
	flag.BoolVarP(&umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.IntVarP(&verbose, "verbose", "v", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace).")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: issuefs [flags] <mountpoint>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logger
	logLvl := util.VerbosityLevel(verbose)
	util.InitializeLogger(logLvl)
	logger := util.GetLogger("main")

	mnt := flag.Arg(0)
	logger.Info().Int("verbose", verbose).Str("config", configPath).Str("mnt", mnt).Msg("issuefs initializing")
	// Check if mount point is provided
	if mnt == "" {
		flag.Usage()
		logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
	}
	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}
	if err := os.MkdirAll(mnt, 0o755); err != nil {
		logger.Fatal().Err(err).Str("mnt", mnt).Msg("Failed to create mount point")
	}

	// Build config: defaults < config file < environment < flags
	cfg := config.NewDefaultConfig()
	if configPath != "" {
		override, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
		cfg.Merge(override)
	}
	cfg.ApplyEnv(os.Getenv)
	if flag.CommandLine.Changed("verbose") {
		cfg.Merge(&config.ConfigOverride{LogLvl: &verbose})
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if cfg.LogLvl != logLvl {
		util.InitializeLogger(cfg.LogLvl)
	}

	reg, err := adapters.NewRegistry(cfg.Trackers, adapters.Options{})
	if err != nil {
		logger.Warn().Err(err).Msg("Some trackers could not be configured")
	}
	if reg.Len() == 0 {
		logger.Warn().Msg("No issue trackers configured; set e.g. " + config.EnvJiraURL + " and " + config.EnvJiraToken)
	}

	fs := server.New(cfg, reg)
	printConnections(fs.Versions())

	// Serve
	if err := fs.Serve(mnt); err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount filesystem")
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Str("store", cfg.StorePath).Msg("Filesystem mounted successfully")
	printUsage(os.Stdout, mnt)

	// Wait for termination signal or an external unmount
	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
	case <-fs.Done():
		logger.Info().Msg("Filesystem was unmounted externally, saving folders")
	}

	// Unmount the filesystem
	if err := fs.Unmount(); err != nil {
		logger.Error().Err(err).Msg("Failed to unmount filesystem")
	} else {
		logger.Info().Msg("Filesystem unmounted successfully")
	}
}

// printConnections prints one line per probed tracker to stdout
func printConnections(versions []issuefs.VersionInfo) {
	ok := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	if len(versions) == 0 {
		fail.Print("✗ ")
		fmt.Println("No issue trackers configured")
		return
	}
	for _, v := range versions {
		if v.Success {
			ok.Print("✓ ")
			fmt.Printf("%s %s", v.Backend.DisplayName(), v.Version)
			if v.User != "" {
				fmt.Printf(" as %s", v.User)
			}
			dim.Printf(" (%s)\n", v.BaseURL)
			continue
		}
		fail.Print("✗ ")
		fmt.Printf("%s: %s\n", v.Backend.DisplayName(), v.Error)
	}
}

// printUsage prints a short how-to for a fresh mount to w
func printUsage(w io.Writer, mnt string) {
	title := color.New(color.Bold)

	title.Fprintf(w, "\nissuefs mounted at %s\n", mnt)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  1. Create a folder: mkdir %s/my_query\n", mnt)
	fmt.Fprintf(w, "  2. Edit its config: vi %s/my_query/config.yaml\n", mnt)
	fmt.Fprintln(w, "  3. Configure with:")
	fmt.Fprintln(w, "       enabled: true")
	fmt.Fprintln(w, "       persistent: true   # keep the folder across mounts")
	fmt.Fprintln(w, "       jira:")
	fmt.Fprintln(w, "         jql: 'your JQL query'")
	fmt.Fprintln(w, "       github:")
	fmt.Fprintln(w, "         repo: owner/name")
	fmt.Fprintln(w, "         query: 'is:open label:bug'")
	fmt.Fprintln(w, "       bugzilla:")
	fmt.Fprintln(w, "         query: 'summary words'")
	fmt.Fprintln(w, "  4. Issues appear as .txt files in the folder")
	fmt.Fprintf(w, "  Tracker connection details are in %s/version.txt\n", mnt)
	fmt.Fprintln(w, "\nPress Ctrl+C to unmount")
}
