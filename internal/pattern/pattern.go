package pattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

// Context is a bitmask of pattern namespaces legal at a render call site.
type Context uint8

const (
	// CtxRun covers run-global patterns: appname, home.
	CtxRun Context = 1 << iota

	// CtxPodcast covers podcast-level patterns: podname, rss::channel.
	CtxPodcast

	// CtxEpisode covers episode-level patterns: guid, url, rss::episode,
	// pubdate.
	CtxEpisode

	// CtxFile covers patterns that read the downloaded file: id3tag.
	CtxFile
)

// Predefined contexts for the three render call sites.
var (
	// PathContext is for download_path: no episode is bound yet.
	PathContext = CtxRun | CtxPodcast

	// EpisodeContext is for name_pattern and id_pattern: episode data is
	// available, but no file exists on disk yet.
	EpisodeContext = CtxRun | CtxPodcast | CtxEpisode

	// FileContext is for id3_tags values: the episode file has been
	// downloaded, so id3tag reads are legal.
	FileContext = CtxRun | CtxPodcast | CtxEpisode | CtxFile
)

// TagSource looks up a named tag and returns all its values in document
// order. A nil or empty result means the tag is absent.
type TagSource interface {
	Lookup(name string) []string
}

// Bindings supplies the data sources for one Render call. Only the
// fields covered by the template's compile context need to be set.
type Bindings struct {
	AppName     string
	Home        string
	PodcastName string

	// Channel is the podcast-level tag table (rss::channel).
	Channel TagSource

	GUID    string
	URL     string
	PubDate time.Time

	// Episode is the episode-level tag table (rss::episode).
	Episode TagSource

	// File reads ID3 frames from the downloaded file (id3tag).
	File TagSource
}

// CompileError reports a malformed template: unbalanced braces, a bad
// escape, an empty placeholder, or an unknown pattern name.
type CompileError struct {
	Template string
	Pos      int
	Msg      string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid pattern %q at offset %d: %s", e.Template, e.Pos, e.Msg)
}

// ContextError reports a recognized pattern used outside its permitted
// context, e.g. {id3tag::artist} inside a download path.
type ContextError struct {
	Template string
	Name     string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("pattern %q not allowed in this context (template %q)", e.Name, e.Template)
}

// RenderError reports a placeholder that could not be resolved against
// the given bindings, e.g. an rss tag absent on a specific episode.
type RenderError struct {
	Name   string
	Arg    string
	Reason string
}

func (e *RenderError) Error() string {
	name := e.Name
	if e.Arg != "" {
		name += "::" + e.Arg
	}
	return fmt.Sprintf("cannot render {%s}: %s", name, e.Reason)
}

// node is one segment of a compiled template: either literal text or a
// placeholder with an optional argument.
type node struct {
	lit  string
	name string
	arg  string
}

// Compiled is an immutable, reusable compiled template.
type Compiled struct {
	src   string
	nodes []node
}

// String returns the original template source.
func (c *Compiled) String() string { return c.src }

// unitPatterns maps zero-argument pattern names to the context they
// require.
var unitPatterns = map[string]Context{
	"guid":    CtxEpisode,
	"url":     CtxEpisode,
	"podname": CtxPodcast,
	"appname": CtxRun,
	"home":    CtxRun,
}

// dataPatterns maps single-argument pattern names to the context they
// require. The argument follows the name after "::".
var dataPatterns = map[string]Context{
	"rss::episode": CtxEpisode,
	"rss::channel": CtxPodcast,
	"pubdate":      CtxEpisode,
	"id3tag":       CtxFile,
}

// Compile parses a template and checks every placeholder against the
// allowed context. The returned Compiled is safe for concurrent use.
func Compile(template string, allowed Context) (*Compiled, error) {
	var nodes []node
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			nodes = append(nodes, node{lit: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end == -1 {
				return nil, &CompileError{Template: template, Pos: i, Msg: "unterminated '{'"}
			}
			body := template[i+1 : i+1+end]
			if strings.ContainsRune(body, '{') {
				return nil, &CompileError{Template: template, Pos: i, Msg: "nested '{' inside placeholder"}
			}
			n, err := parsePlaceholder(template, i, body, allowed)
			if err != nil {
				return nil, err
			}
			flush()
			nodes = append(nodes, n)
			i += end + 2
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, &CompileError{Template: template, Pos: i, Msg: "unmatched '}'"}
		default:
			lit.WriteByte(template[i])
			i++
		}
	}
	flush()

	return &Compiled{src: template, nodes: nodes}, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// hardcoded built-in templates.
func MustCompile(template string, allowed Context) *Compiled {
	c, err := Compile(template, allowed)
	if err != nil {
		panic(err)
	}
	return c
}

func parsePlaceholder(template string, pos int, body string, allowed Context) (node, error) {
	if body == "" {
		return node{}, &CompileError{Template: template, Pos: pos, Msg: "empty placeholder"}
	}

	if ctx, ok := unitPatterns[body]; ok {
		if allowed&ctx == 0 {
			return node{}, &ContextError{Template: template, Name: body}
		}
		return node{name: body}, nil
	}

	for name, ctx := range dataPatterns {
		if !strings.HasPrefix(body, name+"::") {
			continue
		}
		arg := body[len(name)+2:]
		if arg == "" {
			return node{}, &CompileError{Template: template, Pos: pos, Msg: fmt.Sprintf("pattern %q requires an argument", name)}
		}
		if allowed&ctx == 0 {
			return node{}, &ContextError{Template: template, Name: name}
		}
		return node{name: name, arg: arg}, nil
	}

	return node{}, &CompileError{Template: template, Pos: pos, Msg: fmt.Sprintf("unknown pattern %q", body)}
}

// Render evaluates the template against the given bindings. It is pure:
// identical bindings always produce identical output.
func (c *Compiled) Render(b Bindings) (string, error) {
	var out strings.Builder
	for _, n := range c.nodes {
		if n.name == "" {
			out.WriteString(n.lit)
			continue
		}
		s, err := resolve(n, b)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}
	return out.String(), nil
}

func resolve(n node, b Bindings) (string, error) {
	switch n.name {
	case "guid":
		return b.GUID, nil
	case "url":
		return b.URL, nil
	case "podname":
		return b.PodcastName, nil
	case "appname":
		return b.AppName, nil
	case "home":
		return b.Home, nil
	case "pubdate":
		if b.PubDate.IsZero() {
			return "", &RenderError{Name: n.name, Arg: n.arg, Reason: "episode has no publish date"}
		}
		return strftime.Format(n.arg, b.PubDate), nil
	case "rss::episode":
		return lookup(b.Episode, n, "tag not present on episode")
	case "rss::channel":
		return lookup(b.Channel, n, "tag not present on channel")
	case "id3tag":
		return lookup(b.File, n, "tag not present in file")
	}
	// Unreachable: Compile only emits known names.
	return "", &RenderError{Name: n.name, Arg: n.arg, Reason: "unknown pattern"}
}

func lookup(src TagSource, n node, absent string) (string, error) {
	if src == nil {
		return "", &RenderError{Name: n.name, Arg: n.arg, Reason: "no source bound"}
	}
	values := src.Lookup(n.arg)
	if len(values) == 0 {
		return "", &RenderError{Name: n.name, Arg: n.arg, Reason: absent}
	}
	return values[0], nil
}
