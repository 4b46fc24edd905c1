package linksync

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreList matches directory entry names that never trigger a compress,
// never become archive members and are never extracted. Patterns use
// gitignore syntax. An empty list matches nothing.
type IgnoreList struct {
	lines  []string
	ignore *gitignore.GitIgnore
}

func NewIgnoreList(patterns ...string) *IgnoreList {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != "" {
			lines = append(lines, p)
		}
	}
	return &IgnoreList{
		lines:  lines,
		ignore: gitignore.CompileIgnoreLines(lines...),
	}
}

// ShouldIgnore reports whether the entry name matches the list.
func (l *IgnoreList) ShouldIgnore(name string) bool {
	if len(l.lines) == 0 {
		return false
	}
	return l.ignore.MatchesPath(name)
}

func (l *IgnoreList) Patterns() []string {
	return l.lines
}
