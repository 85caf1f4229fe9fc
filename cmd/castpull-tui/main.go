package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/castpull/castpull/internal/config"
	"github.com/castpull/castpull/internal/download"
	"github.com/castpull/castpull/internal/tui"
)

func main() {
	dir, err := config.DefaultDir()
	if err != nil {
		fatal(err)
	}
	global, err := config.LoadGlobal(config.GlobalPath(dir))
	if err != nil {
		fatal(err)
	}
	overrides, err := config.LoadPodcasts(config.PodcastsPath(dir))
	if err != nil {
		fatal(err)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var podcasts []*config.Podcast
	for _, name := range names {
		p, err := config.Resolve(name, global, overrides[name])
		if err != nil {
			fatal(err)
		}
		podcasts = append(podcasts, p)
	}

	if err := tui.Run(podcasts, download.Options{}); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
