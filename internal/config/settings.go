package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/castpull/castpull/internal/pattern"
)

// AppName is the fixed application name, also exposed to templates as
// the {appname} pattern.
const AppName = "castpull"

// Built-in defaults for the required settings. A podcast always resolves
// these even with empty configuration files.
const (
	DefaultDownloadPath = "{home}/Podcasts/{podname}"
	DefaultNamePattern  = "{pubdate::%Y-%m-%d} {rss::episode::title}"
	DefaultIDPattern    = "{guid}"
)

// Raw is one settings table as decoded from TOML, before resolution.
// Values are kept untyped because a setting may legally hold a string,
// an integer, a table, or the boolean false disable sentinel.
type Raw map[string]any

// State distinguishes "not specified" from "explicitly disabled" from
// "has a value".
type State int

const (
	Unset State = iota
	Disabled
	Set
)

// Value is the tri-state result of resolving one setting.
type Value struct {
	State State
	Raw   any
}

// MissingSettingError reports a required setting that resolved to
// neither an override, a global value, nor a built-in default.
type MissingSettingError struct {
	Podcast string
	Setting string
}

func (e *MissingSettingError) Error() string {
	return fmt.Sprintf("podcast %q: required setting %q is missing", e.Podcast, e.Setting)
}

// SettingError reports a setting that resolved to a value the pipeline
// cannot use: wrong type, bad date, or a template that failed to compile.
type SettingError struct {
	Podcast string
	Setting string
	Err     error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("podcast %q: setting %q: %v", e.Podcast, e.Setting, e.Err)
}

func (e *SettingError) Unwrap() error { return e.Err }

// ID3TagPattern is one configured ID3 rewrite: a tag name (friendly name
// or raw frame ID) and the template that renders its value.
type ID3TagPattern struct {
	Tag      string
	Template *pattern.Compiled
}

// Podcast is the fully resolved, immutable configuration for one podcast.
// Templates are compiled at resolution time so malformed patterns and
// context violations surface before any network I/O.
type Podcast struct {
	Name string
	URL  string

	DownloadPath *pattern.Compiled
	NamePattern  *pattern.Compiled
	IDPattern    *pattern.Compiled

	// TrackerPath is nil when unset; the tracker then lives at
	// <download_path>/.downloaded.
	TrackerPath *pattern.Compiled

	// DownloadHook is empty when unset or explicitly disabled.
	DownloadHook string

	// MaxDays and MaxEpisodes are 0 when unset or disabled.
	MaxDays     int
	MaxEpisodes int

	// EarliestDate and BacklogStart are zero when unset or disabled.
	EarliestDate time.Time
	BacklogStart time.Time

	// BacklogInterval is in days; 0 when unset or disabled.
	BacklogInterval int

	EmbedCoverArt bool

	ID3Tags []ID3TagPattern
}

// settingDef describes one recognized setting for the resolver.
type settingDef struct {
	name        string
	required    bool
	podcastOnly bool
	def         any
}

var settingDefs = map[string]settingDef{
	"download_path":    {name: "download_path", required: true, def: DefaultDownloadPath},
	"name_pattern":     {name: "name_pattern", required: true, def: DefaultNamePattern},
	"id_pattern":       {name: "id_pattern", required: true, def: DefaultIDPattern},
	"tracker_path":     {name: "tracker_path"},
	"download_hook":    {name: "download_hook"},
	"max_days":         {name: "max_days"},
	"max_episodes":     {name: "max_episodes"},
	"earliest_date":    {name: "earliest_date"},
	"embed_cover_art":  {name: "embed_cover_art"},
	"id3_tags":         {name: "id3_tags"},
	"backlog_start":    {name: "backlog_start", podcastOnly: true},
	"backlog_interval": {name: "backlog_interval", podcastOnly: true},
}

// resolveValue applies the resolution order for a single setting:
// explicit override, then the disable sentinel, then the global value
// (skipped for podcast-only settings), then the built-in default.
func resolveValue(global, override Raw, def settingDef) Value {
	if v, ok := override[def.name]; ok {
		if b, isBool := v.(bool); isBool && !b {
			return Value{State: Disabled}
		}
		return Value{State: Set, Raw: v}
	}
	if !def.podcastOnly {
		if v, ok := global[def.name]; ok {
			if b, isBool := v.(bool); isBool && !b {
				return Value{State: Disabled}
			}
			return Value{State: Set, Raw: v}
		}
	}
	if def.def != nil {
		return Value{State: Set, Raw: def.def}
	}
	return Value{State: Unset}
}

// Resolve merges global and per-podcast settings into one effective,
// validated configuration. It runs once per podcast at startup; a
// returned error means the podcast is skipped for the run.
func Resolve(name string, global, override Raw) (*Podcast, error) {
	p := &Podcast{Name: name}

	url, ok := override["url"].(string)
	if !ok || url == "" {
		return nil, &MissingSettingError{Podcast: name, Setting: "url"}
	}
	p.URL = url

	var err error
	if p.DownloadPath, err = resolveTemplate(name, global, override, "download_path", pattern.PathContext); err != nil {
		return nil, err
	}
	if p.NamePattern, err = resolveTemplate(name, global, override, "name_pattern", pattern.EpisodeContext); err != nil {
		return nil, err
	}
	if p.IDPattern, err = resolveTemplate(name, global, override, "id_pattern", pattern.EpisodeContext); err != nil {
		return nil, err
	}
	if p.TrackerPath, err = resolveTemplate(name, global, override, "tracker_path", pattern.PathContext); err != nil {
		return nil, err
	}

	if p.DownloadHook, err = resolveString(name, global, override, "download_hook"); err != nil {
		return nil, err
	}
	if p.MaxDays, err = resolveInt(name, global, override, "max_days"); err != nil {
		return nil, err
	}
	if p.MaxEpisodes, err = resolveInt(name, global, override, "max_episodes"); err != nil {
		return nil, err
	}
	if p.EarliestDate, err = resolveDate(name, global, override, "earliest_date"); err != nil {
		return nil, err
	}
	if p.BacklogStart, err = resolveDate(name, global, override, "backlog_start"); err != nil {
		return nil, err
	}
	if p.BacklogInterval, err = resolveInt(name, global, override, "backlog_interval"); err != nil {
		return nil, err
	}

	if v := resolveValue(global, override, settingDefs["embed_cover_art"]); v.State == Set {
		b, ok := v.Raw.(bool)
		if !ok {
			return nil, &SettingError{Podcast: name, Setting: "embed_cover_art", Err: fmt.Errorf("expected a boolean, got %T", v.Raw)}
		}
		p.EmbedCoverArt = b
	}

	if p.ID3Tags, err = resolveID3Tags(name, global, override); err != nil {
		return nil, err
	}

	return p, nil
}

func resolveTemplate(podcast string, global, override Raw, setting string, ctx pattern.Context) (*pattern.Compiled, error) {
	def := settingDefs[setting]
	v := resolveValue(global, override, def)
	if v.State != Set {
		if def.required {
			return nil, &MissingSettingError{Podcast: podcast, Setting: setting}
		}
		return nil, nil
	}
	s, ok := v.Raw.(string)
	if !ok {
		return nil, &SettingError{Podcast: podcast, Setting: setting, Err: fmt.Errorf("expected a string, got %T", v.Raw)}
	}
	compiled, err := pattern.Compile(s, ctx)
	if err != nil {
		return nil, &SettingError{Podcast: podcast, Setting: setting, Err: err}
	}
	return compiled, nil
}

func resolveString(podcast string, global, override Raw, setting string) (string, error) {
	v := resolveValue(global, override, settingDefs[setting])
	if v.State != Set {
		return "", nil
	}
	s, ok := v.Raw.(string)
	if !ok {
		return "", &SettingError{Podcast: podcast, Setting: setting, Err: fmt.Errorf("expected a string, got %T", v.Raw)}
	}
	return s, nil
}

func resolveInt(podcast string, global, override Raw, setting string) (int, error) {
	v := resolveValue(global, override, settingDefs[setting])
	if v.State != Set {
		return 0, nil
	}
	n, ok := v.Raw.(int64)
	if !ok {
		return 0, &SettingError{Podcast: podcast, Setting: setting, Err: fmt.Errorf("expected an integer, got %T", v.Raw)}
	}
	if n <= 0 {
		return 0, &SettingError{Podcast: podcast, Setting: setting, Err: fmt.Errorf("must be positive, got %d", n)}
	}
	return int(n), nil
}

// resolveDate accepts "2006-01-02" or RFC 3339 strings, plus native TOML
// datetime values (which decode as time.Time).
func resolveDate(podcast string, global, override Raw, setting string) (time.Time, error) {
	v := resolveValue(global, override, settingDefs[setting])
	if v.State != Set {
		return time.Time{}, nil
	}
	switch raw := v.Raw.(type) {
	case time.Time:
		return raw, nil
	case string:
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return time.Time{}, &SettingError{Podcast: podcast, Setting: setting, Err: fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", raw)}
	default:
		return time.Time{}, &SettingError{Podcast: podcast, Setting: setting, Err: fmt.Errorf("expected a date, got %T", v.Raw)}
	}
}

func resolveID3Tags(podcast string, global, override Raw) ([]ID3TagPattern, error) {
	v := resolveValue(global, override, settingDefs["id3_tags"])
	if v.State != Set {
		return nil, nil
	}
	table, ok := v.Raw.(map[string]any)
	if !ok {
		return nil, &SettingError{Podcast: podcast, Setting: "id3_tags", Err: fmt.Errorf("expected a table of tag = pattern, got %T", v.Raw)}
	}

	names := make([]string, 0, len(table))
	for tag := range table {
		names = append(names, tag)
	}
	sort.Strings(names)

	tags := make([]ID3TagPattern, 0, len(names))
	for _, tag := range names {
		s, ok := table[tag].(string)
		if !ok {
			return nil, &SettingError{Podcast: podcast, Setting: "id3_tags", Err: fmt.Errorf("tag %q: expected a string pattern, got %T", tag, table[tag])}
		}
		compiled, err := pattern.Compile(s, pattern.FileContext)
		if err != nil {
			return nil, &SettingError{Podcast: podcast, Setting: "id3_tags", Err: err}
		}
		tags = append(tags, ID3TagPattern{Tag: tag, Template: compiled})
	}
	return tags, nil
}
