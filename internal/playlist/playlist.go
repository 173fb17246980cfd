// Package playlist expands playlist URLs (M3U, EXT-M3U, PLS) into the
// ordered list of content URLs they reference. Nested playlists are expanded
// recursively up to a fixed depth.
package playlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/samber/lo"

	"github.com/kohtzk/mediaplayer-go/internal/fetcher"
)

// maxDepth bounds nested playlist expansion.
const maxDepth = 4

// maxPlaylistBytes bounds how much of a playlist document is read.
const maxPlaylistBytes = 1 << 20

// Parser expands a URL into playable content URLs, in play order.
type Parser interface {
	Expand(ctx context.Context, rawURL string) ([]string, error)
}

// DefaultParser fetches playlist documents through a fetcher.Factory.
type DefaultParser struct {
	factory fetcher.Factory
}

// New creates a parser over the given fetcher factory.
func New(factory fetcher.Factory) *DefaultParser {
	return &DefaultParser{factory: factory}
}

// Expand resolves rawURL. A URL that is not a playlist expands to itself.
func (p *DefaultParser) Expand(ctx context.Context, rawURL string) ([]string, error) {
	return p.expand(ctx, rawURL, 0)
}

func (p *DefaultParser) expand(ctx context.Context, rawURL string, depth int) ([]string, error) {
	if !isPlaylistURL(rawURL) {
		return []string{rawURL}, nil
	}
	if depth >= maxDepth {
		slog.Warn("playlist: max nesting depth reached", "url", rawURL, "depth", depth)
		return nil, fmt.Errorf("playlist %s: nesting depth %d exceeded", rawURL, maxDepth)
	}

	content, err := p.factory.New(rawURL).Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer content.Body.Close()

	entries, err := parse(io.LimitReader(content.Body, maxPlaylistBytes), rawURL)
	if err != nil {
		return nil, err
	}

	resolved := lo.Map(entries, func(entry string, _ int) string {
		return resolveRef(rawURL, entry)
	})

	var out []string
	for _, entry := range resolved {
		urls, err := p.expand(ctx, entry, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, urls...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("playlist %s: no entries", rawURL)
	}
	return out, nil
}

// isPlaylistURL reports whether the URL path names a playlist document.
func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u", ".m3u8", ".pls":
		return true
	}
	return false
}

// parse extracts entry URLs from a playlist document, preserving order.
func parse(r io.Reader, rawURL string) ([]string, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("read playlist %s: %w", rawURL, err)
	}

	u, _ := url.Parse(rawURL)
	if u != nil && strings.EqualFold(path.Ext(u.Path), ".pls") {
		return parsePLS(lines), nil
	}
	return parseM3U(lines), nil
}

// parseM3U handles plain M3U and EXT-M3U: every non-blank, non-comment line
// is an entry.
func parseM3U(lines []string) []string {
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			return "", false
		}
		return line, true
	})
}

// parsePLS handles the INI-style PLS format: FileN=<url> lines, in order.
func parsePLS(lines []string) []string {
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), "file") {
			return "", false
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return "", false
		}
		entry := strings.TrimSpace(line[eq+1:])
		return entry, entry != ""
	})
}

// resolveRef resolves a possibly relative playlist entry against the
// playlist's own URL.
func resolveRef(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
