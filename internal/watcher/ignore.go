package watcher

import (
	"bufio"
	"os"
	"path"
	"strings"
)

// DefaultIgnore covers editor swap and backup files that appear
// around every save.
var DefaultIgnore = []string{
	"*.swp",
	"*.swx",
	"*~",
	".#*",
	"*.tmp",
	"4913",
	".DS_Store",
}

// Ignore matches slash-separated relative paths against gitignore-style
// patterns: globs (*.log), directory-only (drafts/), root-relative
// (/archive), double-star (**/tmp, build/**) and negation (!keep.md).
// The last matching pattern wins.
type Ignore struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// NewIgnore builds a matcher from patterns.
func NewIgnore(patterns ...string) *Ignore {
	ig := &Ignore{}
	for _, p := range patterns {
		ig.Add(p)
	}
	return ig
}

// Add appends one pattern. Blank lines and comments are skipped.
func (ig *Ignore) Add(line string) {
	if p, ok := parsePattern(line); ok {
		ig.patterns = append(ig.patterns, p)
	}
}

// LoadFile appends the patterns of an ignore file. A missing file is not
// an error.
func (ig *Ignore) LoadFile(file string) error {
	f, err := os.Open(file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ig.Add(scanner.Text())
	}
	return scanner.Err()
}

// Len returns the number of loaded patterns.
func (ig *Ignore) Len() int {
	return len(ig.patterns)
}

// Match reports whether rel is ignored, either directly or through one of
// its parent directories.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	if ig == nil || len(ig.patterns) == 0 {
		return false
	}
	segments := strings.Split(rel, "/")
	for i := 1; i < len(segments); i++ {
		if ig.matchOne(strings.Join(segments[:i], "/"), true) {
			return true
		}
	}
	return ig.matchOne(rel, isDir)
}

func (ig *Ignore) matchOne(rel string, isDir bool) bool {
	ignored := false
	for _, p := range ig.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.match(rel) {
			ignored = !p.negate
		}
	}
	return ignored
}

func parsePattern(line string) (ignorePattern, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}

	var p ignorePattern
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		p.negate = true
		line = rest
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	switch {
	case strings.HasPrefix(line, "/"):
		p.anchored = true
		line = line[1:]
	case strings.Contains(line, "/") && !strings.HasPrefix(line, "**/"):
		p.anchored = true
	}

	if line == "" {
		return ignorePattern{}, false
	}
	p.glob = line
	return p, true
}

func (p ignorePattern) match(rel string) bool {
	glob := p.glob

	if rest, ok := strings.CutPrefix(glob, "**/"); ok {
		return matchAnyDepth(rest, rel)
	}
	if prefix, ok := strings.CutSuffix(glob, "/**"); ok {
		return rel == prefix || strings.HasPrefix(rel, prefix+"/")
	}
	if before, after, ok := strings.Cut(glob, "/**/"); ok {
		if rel != before && !strings.HasPrefix(rel, before+"/") {
			return false
		}
		return matchAnyDepth(after, strings.TrimPrefix(rel, before+"/"))
	}

	if p.anchored {
		return globMatch(glob, rel)
	}
	return globMatch(glob, path.Base(rel))
}

// matchAnyDepth matches glob against rel or any suffix of rel that starts
// at a segment boundary.
func matchAnyDepth(glob, rel string) bool {
	for {
		if globMatch(glob, rel) {
			return true
		}
		_, rest, ok := strings.Cut(rel, "/")
		if !ok {
			return false
		}
		rel = rest
	}
}

func globMatch(glob, name string) bool {
	ok, _ := path.Match(glob, name)
	return ok
}
