package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// A scanRule is one line of watch.ignore or .filecatignore.
//
//	*.part          any file or directory named like this, at any depth
//	/inbox.tmp      only at the watch directory root
//	archive/2019    a path relative to the watch directory
//	.sync/          directories only
//	!keep.part      re-include something an earlier rule skipped
type scanRule struct {
	glob     string
	negate   bool
	dirOnly  bool
	anchored bool
}

// ScanFilter decides which entries of a watch directory a scan skips. Rules
// are applied in order and the last one that matches decides.
type ScanFilter struct {
	rules []scanRule
}

// Partial downloads and sync bookkeeping that must never be registered.
var builtinSkips = []string{
	IgnoreFileName,
	"*.crdownload",
	"*.part",
	".DS_Store",
}

// NewScanFilter builds a filter from rule lists applied in order: built-in
// skips first, so config and the ignore file can re-include with '!'.
func NewScanFilter(lists ...[]string) *ScanFilter {
	f := &ScanFilter{}
	for _, list := range append([][]string{builtinSkips}, lists...) {
		for _, line := range list {
			if r, ok := parseScanRule(line); ok {
				f.rules = append(f.rules, r)
			}
		}
	}
	return f
}

func parseScanRule(line string) (scanRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return scanRule{}, false
	}
	var r scanRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return scanRule{}, false
	}
	if _, err := path.Match(line, ""); err != nil {
		return scanRule{}, false
	}
	r.glob = line
	return r, true
}

func (r scanRule) matches(rel string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	subject := path.Base(rel)
	if r.anchored {
		subject = rel
	}
	ok, _ := path.Match(r.glob, subject)
	return ok
}

// Skip reports whether the entry at rel, relative to the watch directory,
// is left out of a scan. Skipped directories are not descended into.
func (f *ScanFilter) Skip(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	skip := false
	for _, r := range f.rules {
		if r.matches(rel, isDir) {
			skip = !r.negate
		}
	}
	return skip
}

// ReadIgnoreFile returns the lines of an ignore file, or nil when it does
// not exist.
func ReadIgnoreFile(fsys afero.Fs, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file %s: %w", name, err)
	}
	return lines, nil
}
