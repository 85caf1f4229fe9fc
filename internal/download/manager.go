package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/castpull/castpull/internal/audio"
	"github.com/castpull/castpull/internal/config"
	"github.com/castpull/castpull/internal/feed"
	"github.com/castpull/castpull/internal/hook"
	"github.com/castpull/castpull/internal/http"
	ioutils "github.com/castpull/castpull/internal/io"
	"github.com/castpull/castpull/internal/pattern"
	"github.com/castpull/castpull/internal/schedule"
	"github.com/castpull/castpull/internal/tracker"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a sync progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Options tunes a Manager. The zero value gets sensible defaults.
type Options struct {
	// Workers bounds concurrent episode transfers across all podcasts.
	Workers int

	// MaxRetries is the number of re-attempts after a failed transfer.
	MaxRetries int

	// FetchTimeout bounds a single feed fetch. Episode transfers are not
	// subject to it; they run until done or cancelled.
	FetchTimeout time.Duration

	// HookTimeout bounds a single download hook invocation.
	HookTimeout time.Duration

	// DryRun reports what would be downloaded without transferring
	// anything or touching the tracker.
	DryRun bool

	Logger *slog.Logger

	// Now overrides the clock for filtering decisions. Nil means
	// time.Now.
	Now func() time.Time
}

const (
	defaultWorkers    = 4
	defaultMaxRetries = 3
	defaultFetchWait  = 30 * time.Second
)

// Manager coordinates one sync run across the configured podcasts.
type Manager struct {
	podcasts []*config.Podcast
	opts     Options
	home     string

	client  *http.Client
	fetcher *feed.Fetcher
	tagger  *audio.Tagger
	images  *ioutils.ImageService
	log     *slog.Logger

	onProgress func(ProgressEvent)

	totalBytes    atomic.Int64
	receivedBytes atomic.Int64
	totalTasks    atomic.Int32
	doneTasks     atomic.Int32
}

// NewManager creates a Manager for the given resolved podcasts.
// onProgress may be nil.
func NewManager(podcasts []*config.Podcast, opts Options, onProgress func(ProgressEvent)) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchWait
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	home, _ := os.UserHomeDir()

	return &Manager{
		podcasts:   podcasts,
		opts:       opts,
		home:       home,
		client:     http.NewClient(),
		fetcher:    feed.NewFetcher(opts.FetchTimeout),
		tagger:     audio.NewTagger(),
		images:     ioutils.NewImageService(),
		log:        opts.Logger,
		onProgress: onProgress,
	}
}

// Summary is the outcome of one Sync run.
type Summary struct {
	// Downloaded lists the final paths of episodes completed this run,
	// or the paths that would be downloaded under DryRun.
	Downloaded []string

	// Failed counts episodes that were eligible but did not complete.
	Failed int

	// PodcastErrors holds per-podcast fatal errors (feed fetch, path
	// render, tracker load). The affected podcast was skipped; others
	// proceeded.
	PodcastErrors []error
}

// OK reports whether every podcast and every eligible episode completed.
func (s *Summary) OK() bool {
	return s.Failed == 0 && len(s.PodcastErrors) == 0
}

// podcastRun is the prepared per-podcast state for one Sync: fetched
// feed, loaded tracker, rendered download directory, and the fixed set
// of eligible tasks.
type podcastRun struct {
	cfg     *config.Podcast
	channel *feed.Channel
	tracker *tracker.Tracker
	home    string
	dir     string
	artwork []byte
	tasks   []*task
}

// bindings builds the render bindings for this run, optionally extended
// with an episode and a downloaded-file tag source.
func (r *podcastRun) bindings(ep *feed.Episode, file pattern.TagSource) pattern.Bindings {
	b := pattern.Bindings{
		AppName:     config.AppName,
		Home:        r.home,
		PodcastName: r.cfg.Name,
		Channel:     r.channel.Tags,
		File:        file,
	}
	if ep != nil {
		b.GUID = ep.GUID
		b.URL = ep.EnclosureURL
		b.PubDate = ep.Published
		b.Episode = ep.Tags
	}
	return b
}

// task is one eligible episode download. All state here is transient;
// only the tracked id survives the run, and only on full success.
type task struct {
	run     *podcastRun
	episode feed.Episode
	id      string
	path    string
	partial string
}

// Sync runs the full pipeline: prepare every podcast, then drain the
// combined task set on the worker pool. Cancelling ctx stops new work;
// in-flight transfers abort and leave their partial files for the next
// run.
func (m *Manager) Sync(ctx context.Context) *Summary {
	summary := &Summary{}
	var sumMu sync.Mutex

	m.totalBytes.Store(0)
	m.receivedBytes.Store(0)
	m.totalTasks.Store(0)
	m.doneTasks.Store(0)

	runs := make([]*podcastRun, len(m.podcasts))

	// Phase 1: fetch feeds and plan eligible episodes. Podcasts are
	// independent; an error in one only skips that one.
	var prep errgroup.Group
	prep.SetLimit(m.opts.Workers)
	for i, cfg := range m.podcasts {
		prep.Go(func() error {
			run, failed, err := m.prepare(ctx, cfg)
			sumMu.Lock()
			summary.Failed += failed
			if err != nil {
				summary.PodcastErrors = append(summary.PodcastErrors, err)
			}
			sumMu.Unlock()
			if err != nil {
				m.progress(ProgressEvent{Message: fmt.Sprintf("Skipping %s: %v", cfg.Name, err), Level: LevelError})
				m.log.Error("podcast skipped", "podcast", cfg.Name, "error", err)
				return nil
			}
			runs[i] = run
			return nil
		})
	}
	prep.Wait()

	for _, run := range runs {
		if run == nil {
			continue
		}
		m.totalTasks.Add(int32(len(run.tasks)))
	}

	if m.opts.DryRun {
		for _, run := range runs {
			if run == nil {
				continue
			}
			for _, t := range run.tasks {
				summary.Downloaded = append(summary.Downloaded, t.path)
				m.progress(ProgressEvent{Message: fmt.Sprintf("Would download: %s", filepath.Base(t.path)), Level: LevelInfo})
			}
		}
		return summary
	}

	// Phase 2: drain the combined task set. The eligible set is fixed;
	// workers share nothing but the pool and each podcast's tracker.
	var pool errgroup.Group
	pool.SetLimit(m.opts.Workers)
	for _, run := range runs {
		if run == nil {
			continue
		}
		for _, t := range run.tasks {
			pool.Go(func() error {
				if ctx.Err() != nil {
					sumMu.Lock()
					summary.Failed++
					sumMu.Unlock()
					return nil
				}
				if finalPath, err := m.runTask(ctx, t); err != nil {
					sumMu.Lock()
					summary.Failed++
					sumMu.Unlock()
					m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", t.episode.Title, err), Level: LevelError})
					m.log.Error("episode failed", "podcast", t.run.cfg.Name, "episode", t.episode.Title, "error", err)
				} else {
					sumMu.Lock()
					summary.Downloaded = append(summary.Downloaded, finalPath)
					sumMu.Unlock()
				}
				m.doneTasks.Add(1)
				return nil
			})
		}
	}
	pool.Wait()

	return summary
}

// GetProgress returns current transfer progress in bytes and tasks.
func (m *Manager) GetProgress() (received, total int64, tasksDone, tasksTotal int32) {
	return m.receivedBytes.Load(), m.totalBytes.Load(), m.doneTasks.Load(), m.totalTasks.Load()
}

// prepare fetches one podcast's feed, loads its tracker, and plans the
// eligible tasks. The returned failed count covers episodes rejected by
// render errors during planning; err is fatal for the whole podcast.
func (m *Manager) prepare(ctx context.Context, cfg *config.Podcast) (*podcastRun, int, error) {
	m.progress(ProgressEvent{Message: fmt.Sprintf("Fetching feed: %s", cfg.Name), Level: LevelVerbose})

	channel, err := m.fetcher.Fetch(ctx, cfg.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("podcast %q: fetching feed: %w", cfg.Name, err)
	}

	run := &podcastRun{cfg: cfg, channel: channel, home: m.home}

	dir, err := cfg.DownloadPath.Render(run.bindings(nil, nil))
	if err != nil {
		return nil, 0, fmt.Errorf("podcast %q: rendering download_path: %w", cfg.Name, err)
	}
	run.dir = filepath.Clean(dir)

	trackerPath := filepath.Join(run.dir, ".downloaded")
	if cfg.TrackerPath != nil {
		if trackerPath, err = cfg.TrackerPath.Render(run.bindings(nil, nil)); err != nil {
			return nil, 0, fmt.Errorf("podcast %q: rendering tracker_path: %w", cfg.Name, err)
		}
	}
	// A tracker that can't be read is fatal for the podcast: proceeding
	// without it would re-download everything.
	if run.tracker, err = tracker.Load(trackerPath); err != nil {
		return nil, 0, fmt.Errorf("podcast %q: %w", cfg.Name, err)
	}

	if cfg.EmbedCoverArt && channel.ImageURL != "" && !m.opts.DryRun {
		if art, err := m.fetchArtwork(ctx, channel.ImageURL); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading artwork for %s: %v", cfg.Name, err), Level: LevelWarning})
		} else {
			run.artwork = art
		}
	}

	failed := m.plan(run)
	m.progress(ProgressEvent{Message: fmt.Sprintf("Found %d episodes in %s (%d eligible)", len(channel.Episodes), cfg.Name, len(run.tasks)), Level: LevelInfo})
	m.log.Info("podcast planned", "podcast", cfg.Name, "episodes", len(channel.Episodes), "eligible", len(run.tasks), "tracked", run.tracker.Len())

	return run, failed, nil
}

// plan fixes the eligible task set for one podcast. Filters apply in
// order: tracked, earliest_date, max_days, backlog pacing; survivors
// are ranked newest-first and capped at max_episodes. The returned
// count is episodes dropped by render errors.
func (m *Manager) plan(run *podcastRun) int {
	cfg := run.cfg
	now := m.opts.Now()
	backlog := schedule.New(cfg.BacklogStart, cfg.BacklogInterval)

	// Backlog ranks count all paced episodes in the feed, tracked or
	// not, so re-downloading history doesn't shift the schedule.
	ranks := make(map[string]int)
	if backlog.Active() {
		var paced []feed.Episode
		for _, ep := range run.channel.Episodes {
			if backlog.Paced(ep.Published) {
				paced = append(paced, ep)
			}
		}
		sort.SliceStable(paced, func(i, j int) bool { return paced[i].Published.Before(paced[j].Published) })
		for rank, ep := range paced {
			ranks[ep.GUID+"\x00"+ep.EnclosureURL] = rank
		}
	}

	failed := 0
	seen := make(map[string]bool)
	var eligible []*task
	for _, ep := range run.channel.Episodes {
		if ep.EnclosureURL == "" {
			m.progress(ProgressEvent{Message: fmt.Sprintf("No enclosure for %q, skipping", ep.Title), Level: LevelVerbose})
			continue
		}

		id, err := cfg.IDPattern.Render(run.bindings(&ep, nil))
		if err != nil {
			failed++
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error rendering id for %q: %v", ep.Title, err), Level: LevelError})
			continue
		}
		if run.tracker.Contains(id) {
			continue
		}

		if !cfg.EarliestDate.IsZero() && ep.Published.Before(cfg.EarliestDate) {
			continue
		}
		if cfg.MaxDays > 0 && ep.Published.Before(now.AddDate(0, 0, -cfg.MaxDays)) {
			continue
		}
		if backlog.Paced(ep.Published) && !backlog.Unlocked(ranks[ep.GUID+"\x00"+ep.EnclosureURL], now) {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Deferred (backlog): %s", ep.Title), Level: LevelVerbose})
			continue
		}

		name, err := cfg.NamePattern.Render(run.bindings(&ep, nil))
		if err != nil {
			failed++
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error rendering name for %q: %v", ep.Title, err), Level: LevelError})
			continue
		}
		name = ioutils.SanitizeFileName(name)
		if filepath.Ext(name) == "" {
			name += enclosureExt(ep.EnclosureURL)
		}
		finalPath := filepath.Join(run.dir, name)
		if seen[finalPath] {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Duplicate name %q, skipping %q", name, ep.Title), Level: LevelWarning})
			continue
		}
		seen[finalPath] = true

		eligible = append(eligible, &task{
			run:     run,
			episode: ep,
			id:      id,
			path:    finalPath,
			partial: ioutils.PartialPath(finalPath),
		})
	}

	// Newest episodes win the max_episodes budget.
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].episode.Published.After(eligible[j].episode.Published) })
	if cfg.MaxEpisodes > 0 && len(eligible) > cfg.MaxEpisodes {
		eligible = eligible[:cfg.MaxEpisodes]
	}

	// Dispatch oldest-first so files land in publication order.
	for i, j := 0, len(eligible)-1; i < j; i, j = i+1, j-1 {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}

	run.tasks = eligible
	return failed
}

// runTask downloads one episode end to end and returns its final path.
// Order matters: publish the file, post-process, and only then commit
// the tracker entry.
func (m *Manager) runTask(ctx context.Context, t *task) (string, error) {
	cfg := t.run.cfg

	if _, err := os.Stat(t.path); err == nil {
		// The final file already exists, likely from a run whose tracker
		// commit never happened. Never overwrite it; record it as done.
		m.progress(ProgressEvent{Message: fmt.Sprintf("Already exists, recording: %s", filepath.Base(t.path)), Level: LevelWarning})
		if err := t.run.tracker.Commit(t.id, t.episode.Title); err != nil {
			return "", err
		}
		return t.path, nil
	}

	if err := ioutils.EnsureDir(filepath.Dir(t.path)); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	// One progress closure for all attempts: its byte accounting spans
	// retries, so a resumed prefix is never counted twice.
	onProgress := m.taskProgress()

	tries := 0
	backoff := retry.WithMaxRetries(uint64(m.opts.MaxRetries), retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.client.DownloadResume(ctx, t.episode.EnclosureURL, t.partial, onProgress); err != nil {
			if ctx.Err() != nil {
				return err
			}
			tries++
			m.progress(ProgressEvent{Message: fmt.Sprintf("Retry %d/%d for %s", tries, m.opts.MaxRetries, t.episode.Title), Level: LevelWarning})
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		// The partial and its sidecar stay behind for the next run.
		return "", err
	}

	if err := ioutils.Publish(t.partial, t.path); err != nil {
		return "", fmt.Errorf("publishing %s: %w", filepath.Base(t.path), err)
	}
	os.Remove(http.SidecarPath(t.partial))

	m.postProcess(ctx, t)

	if err := t.run.tracker.Commit(t.id, t.episode.Title); err != nil {
		// The file is in place but not recorded; the next run finds it
		// and records it without re-downloading.
		return "", err
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(t.path)), Level: LevelSuccess})
	m.log.Info("episode downloaded", "podcast", cfg.Name, "episode", t.episode.Title, "path", t.path, "id", t.id)
	return t.path, nil
}

// postProcess rewrites ID3 tags, embeds cover art, and runs the
// download hook. Everything here is best effort: the episode file is
// already in place, so failures surface as warnings only.
func (m *Manager) postProcess(ctx context.Context, t *task) {
	cfg := t.run.cfg

	if len(cfg.ID3Tags) > 0 || t.run.artwork != nil {
		tags := m.renderTags(t)
		if err := m.tagger.Rewrite(t.path, tags, t.run.artwork); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error tagging %s: %v", t.episode.Title, err), Level: LevelWarning})
			m.log.Warn("tag rewrite failed", "podcast", cfg.Name, "episode", t.episode.Title, "error", err)
		}
	}

	if cfg.DownloadHook != "" {
		if err := hook.Run(ctx, cfg.DownloadHook, m.opts.HookTimeout, t.path, cfg.Name, t.id); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Hook failed for %s: %v", t.episode.Title, err), Level: LevelWarning})
			m.log.Warn("download hook failed", "podcast", cfg.Name, "episode", t.episode.Title, "error", err)
		}
	}
}

// renderTags renders the configured id3_tags values against the
// downloaded file. A tag that fails to render is dropped with a
// warning; the rest still apply.
func (m *Manager) renderTags(t *task) []audio.RenderedTag {
	var fileTags pattern.TagSource
	if ft, err := audio.OpenFileTags(t.path); err == nil {
		defer ft.Close()
		fileTags = ft
	}

	var rendered []audio.RenderedTag
	for _, tp := range t.run.cfg.ID3Tags {
		frameID, ok := audio.FrameID(tp.Tag)
		if !ok {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Unknown ID3 tag %q, skipping", tp.Tag), Level: LevelWarning})
			continue
		}
		value, err := tp.Template.Render(t.run.bindings(&t.episode, fileTags))
		if err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error rendering tag %q for %s: %v", tp.Tag, t.episode.Title, err), Level: LevelWarning})
			continue
		}
		rendered = append(rendered, audio.RenderedTag{FrameID: frameID, Value: value})
	}
	return rendered
}

// fetchArtwork downloads and normalizes a channel's cover image.
func (m *Manager) fetchArtwork(ctx context.Context, imageURL string) ([]byte, error) {
	data, err := m.client.Get(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return m.images.ResizeImage(ctx, data, 1400, 1400)
}

// taskProgress returns a per-transfer byte callback feeding the
// aggregate counters behind GetProgress.
func (m *Manager) taskProgress() func(written, total int64) {
	var lastWritten, lastTotal int64
	var mu sync.Mutex
	return func(written, total int64) {
		mu.Lock()
		defer mu.Unlock()
		m.receivedBytes.Add(written - lastWritten)
		lastWritten = written
		if total >= 0 && total != lastTotal {
			m.totalBytes.Add(total - lastTotal)
			lastTotal = total
		}
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

// enclosureExt extracts the file extension from an enclosure URL,
// defaulting to .mp3 when the URL path carries none.
func enclosureExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp3"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return ext
	}
	return ".mp3"
}
