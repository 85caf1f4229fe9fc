package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"sort"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/castpull/castpull/internal/config"
	"github.com/castpull/castpull/internal/download"
	"github.com/castpull/castpull/internal/logger"
)

func main() {
	var (
		configFlag  = flag.StringP("config", "c", "", "Path to the global config file (default ~/.config/castpull/config.toml)")
		filterFlag  = flag.StringP("filter", "f", "", "Only act on podcasts whose name matches this regex")
		listFlag    = flag.BoolP("list", "l", false, "List configured podcasts and exit")
		addFlag     = flag.StringP("add", "a", "", "Add a podcast by feed URL and exit")
		nameFlag    = flag.StringP("name", "n", "", "Podcast name for --add")
		catchUpFlag = flag.Bool("catch-up", false, "Mark all current episodes as not wanted and exit")
		printFlag   = flag.BoolP("print", "p", false, "Print downloaded file paths to stdout")
		dryRunFlag  = flag.Bool("dry-run", false, "Report what would be downloaded without downloading")
		verboseFlag = flag.BoolP("verbose", "v", false, "Show verbose output")
		workersFlag = flag.IntP("workers", "w", 0, "Concurrent downloads (default 4)")
	)
	flag.Parse()

	dir, err := config.DefaultDir()
	if err != nil {
		fatal(err)
	}
	globalPath := config.GlobalPath(dir)
	if *configFlag != "" {
		globalPath = *configFlag
	}

	var filter *regexp.Regexp
	if *filterFlag != "" {
		var err error
		if filter, err = regexp.Compile("(?i)" + *filterFlag); err != nil {
			fatal(fmt.Errorf("invalid --filter: %w", err))
		}
	}

	podcastsPath := config.PodcastsPath(dir)

	switch {
	case *addFlag != "":
		name := *nameFlag
		if name == "" {
			fatal(fmt.Errorf("--add requires --name"))
		}
		added, err := config.AddPodcast(podcastsPath, name, *addFlag)
		if err != nil {
			fatal(err)
		}
		if !added {
			fatal(fmt.Errorf("podcast %q already exists", name))
		}
		fmt.Printf("Added %s\n", name)
		return

	case *catchUpFlag:
		updated, err := config.CatchUp(podcastsPath, filter, time.Now())
		if err != nil {
			fatal(err)
		}
		for _, name := range updated {
			fmt.Printf("Caught up %s\n", name)
		}
		return
	}

	global, err := config.LoadGlobal(globalPath)
	if err != nil {
		fatal(err)
	}
	overrides, err := config.LoadPodcasts(podcastsPath)
	if err != nil {
		fatal(err)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		if filter != nil && !filter.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if *listFlag {
		for _, name := range names {
			url, _ := overrides[name]["url"].(string)
			fmt.Printf("%s\t%s\n", name, url)
		}
		return
	}

	// Resolution errors skip the podcast but still fail the run.
	var podcasts []*config.Podcast
	resolveFailed := false
	for _, name := range names {
		p, err := config.Resolve(name, global, overrides[name])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			resolveFailed = true
			continue
		}
		podcasts = append(podcasts, p)
	}

	if len(podcasts) == 0 {
		fmt.Println("No podcasts configured. Add one with: castpull --add <URL> --name <NAME>")
		if resolveFailed {
			os.Exit(1)
		}
		return
	}

	logFile, logPath, err := logger.OpenRunLog(config.AppName)
	if err != nil {
		fatal(err)
	}
	defer logFile.Close()
	log := logger.Setup(logFile, *verboseFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	manager := download.NewManager(podcasts, download.Options{
		Workers: *workersFlag,
		DryRun:  *dryRunFlag,
		Logger:  log,
	}, func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !*verboseFlag {
			return
		}

		prefix := "   "
		switch event.Level {
		case download.LevelError:
			prefix = "✗ "
		case download.LevelWarning:
			prefix = "! "
		case download.LevelSuccess:
			prefix = "✓ "
		case download.LevelInfo:
			prefix = "› "
		}
		fmt.Println(prefix + event.Message)
	})

	summary := manager.Sync(ctx)

	if ctx.Err() != nil {
		fmt.Println("\nSync cancelled.")
		os.Exit(130)
	}

	if *printFlag {
		for _, path := range summary.Downloaded {
			fmt.Println(path)
		}
	}

	received, _, _, _ := manager.GetProgress()
	fmt.Println()
	if *dryRunFlag {
		fmt.Printf("Dry run: %d episode(s) would be downloaded\n", len(summary.Downloaded))
	} else {
		fmt.Printf("Downloaded %d episode(s) (%.2f MB)\n", len(summary.Downloaded), float64(received)/1024/1024)
	}
	if !summary.OK() || resolveFailed {
		fmt.Fprintf(os.Stderr, "Failed: %d episode(s), %d podcast(s)\n", summary.Failed, len(summary.PodcastErrors))
		fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
