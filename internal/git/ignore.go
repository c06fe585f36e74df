package git

import (
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreStack accumulates gitignore patterns as the worktree walk descends
// into directories. push returns a mark that restore unwinds to on the way
// back out, so sibling directories never see each other's patterns.
type ignoreStack struct {
	r        *Repo
	patterns []gitignore.Pattern
}

func (r *Repo) newIgnoreStack() *ignoreStack {
	s := &ignoreStack{r: r}
	s.patterns = append(s.patterns, r.excludePatterns()...)
	return s
}

// excludePatterns loads the repo-wide excludes from .git/info/exclude.
func (r *Repo) excludePatterns() []gitignore.Pattern {
	data, err := r.readGitFile("info/exclude")
	if err != nil || data == "" {
		return nil
	}
	return parsePatternLines(data, nil)
}

// push loads dir/.gitignore (dir "" is the worktree root) and returns the
// mark to pass to restore when leaving dir.
func (s *ignoreStack) push(dir string) int {
	mark := len(s.patterns)
	name := ".gitignore"
	var domain []string
	if dir != "" {
		name = dir + "/.gitignore"
		domain = strings.Split(dir, "/")
	}
	f, err := s.r.wtfs.Open(name)
	if err != nil {
		return mark
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return mark
	}
	s.patterns = append(s.patterns, parsePatternLines(string(data), domain)...)
	return mark
}

func (s *ignoreStack) restore(mark int) {
	s.patterns = s.patterns[:mark]
}

func (s *ignoreStack) match(path string, isDir bool) bool {
	if len(s.patterns) == 0 {
		return false
	}
	return gitignore.NewMatcher(s.patterns).Match(strings.Split(path, "/"), isDir)
}

func parsePatternLines(data string, domain []string) []gitignore.Pattern {
	var ps []gitignore.Pattern
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, domain))
	}
	return ps
}

// ignoredPath builds a one-off matcher for a single path by loading the
// .gitignore files along its ancestor directories. Used by point queries;
// the walk uses ignoreStack incrementally instead.
func (r *Repo) ignoredPath(path string, isDir bool) bool {
	s := r.newIgnoreStack()
	s.push("")
	parts := strings.Split(path, "/")
	dir := ""
	for _, p := range parts[:len(parts)-1] {
		if dir == "" {
			dir = p
		} else {
			dir = dir + "/" + p
		}
		s.push(dir)
	}
	return s.match(path, isDir)
}
