// Package resolver turns arbitrary user-supplied paths into a canonical book
// root. Resolution is read-only and bounded: every candidate form of the
// input is probed directly, then searched breadth-first for nested books.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/schema"
)

// Limits bound the nested-book search.
type Limits struct {
	// MaxDepth is the deepest level below a candidate that is inspected.
	MaxDepth int
	// MaxDirs caps the directories read per resolution.
	MaxDirs int
	// SkipDirs are glob patterns matched against directory names.
	SkipDirs []string
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth: 3,
		MaxDirs:  600,
		SkipDirs: []string{
			".git", ".svn", ".hg", "node_modules", "vendor",
			"dist", "build", "target", ".next", ".cache", "__pycache__",
		},
	}
}

// Candidate is a discovered book root.
type Candidate struct {
	Path string `json:"path"`
	// UpdatedAt is book.json's updatedAt (or createdAt); empty for bare
	// scaffolds and unreadable metadata.
	UpdatedAt string `json:"updatedAt"`
}

// Resolver locates book roots.
type Resolver struct {
	limits Limits
	skip   []glob.Glob
	logger *slog.Logger
}

// New compiles the skip patterns. Non-positive limits fall back to defaults.
func New(limits Limits, logger *slog.Logger) (*Resolver, error) {
	def := DefaultLimits()
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = def.MaxDepth
	}
	if limits.MaxDirs <= 0 {
		limits.MaxDirs = def.MaxDirs
	}
	if limits.SkipDirs == nil {
		limits.SkipDirs = def.SkipDirs
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{limits: limits, logger: logger}
	for _, pattern := range limits.SkipDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("resolver: skip pattern %q: %w", pattern, err)
		}
		r.skip = append(r.skip, g)
	}
	return r, nil
}

// Resolve returns the canonical book root for raw. When several nested books
// are found, the one with the greatest updatedAt wins.
func (r *Resolver) Resolve(raw string) (string, error) {
	found, err := r.ResolveAll(raw)
	if err != nil {
		return "", err
	}
	best := found[0]
	for _, c := range found[1:] {
		if c.UpdatedAt > best.UpdatedAt {
			best = c
		}
	}
	if len(found) > 1 {
		r.logger.Warn("multiple books found, using most recently updated",
			slog.String("input", raw),
			slog.String("path", best.Path),
			slog.Int("candidates", len(found)),
		)
	}
	return best.Path, nil
}

// ResolveAll returns every book reachable from raw, in discovery order. A
// candidate that is itself a book short-circuits the search.
func (r *Resolver) ResolveAll(raw string) ([]Candidate, error) {
	cands := Candidates(raw)
	for _, c := range cands {
		if layout.IsBook(c) {
			return []Candidate{r.candidate(c)}, nil
		}
	}

	s := &scan{r: r, visited: make(map[string]struct{})}
	for _, c := range cands {
		s.search(c)
	}
	if len(s.found) > 0 {
		return s.found, nil
	}
	if s.firstErr != nil {
		return nil, s.firstErr
	}
	return nil, apperr.New(apperr.ErrNotFound, "resolve", raw, fmt.Errorf(
		"no book.json or %s/, %s/, %s/ folders within %d levels; select the book's root folder",
		layout.ChaptersDir, layout.AssetsDir, layout.VersionsDir, r.limits.MaxDepth))
}

func (r *Resolver) candidate(dir string) Candidate {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	c := Candidate{Path: abs}
	data, err := os.ReadFile(layout.New(abs).MetadataPath())
	if err != nil {
		return c
	}
	meta, err := schema.ParseObject(data)
	if err != nil {
		return c
	}
	c.UpdatedAt = meta.NonEmptyStr("updatedAt", meta.NonEmptyStr("createdAt", ""))
	return c
}

func (r *Resolver) skipped(name string) bool {
	for _, g := range r.skip {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// visit is the outcome of reading one directory during the search.
type visit struct {
	dir     string
	depth   int
	entries []fs.DirEntry
	err     error
}

type scan struct {
	r        *Resolver
	visited  map[string]struct{}
	dirs     int
	found    []Candidate
	firstErr error
}

func (s *scan) read(dir string, depth int) visit {
	s.dirs++
	entries, err := os.ReadDir(dir)
	if err == nil {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}
	return visit{dir: dir, depth: depth, entries: entries, err: err}
}

func (s *scan) record(v visit) {
	if v.err == nil || errors.Is(v.err, fs.ErrNotExist) || s.firstErr != nil {
		return
	}
	s.firstErr = apperr.New(apperr.ErrAccess, "scan", v.dir, v.err)
	s.r.logger.Warn("resolver: cannot read directory",
		slog.String("path", v.dir),
		slog.String("error", v.err.Error()),
	)
}

func (s *scan) search(root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		s.record(visit{dir: abs, err: err})
		return
	}
	if !info.IsDir() {
		return
	}

	queue := []string{abs}
	depths := map[string]int{abs: 0}
	for len(queue) > 0 && s.dirs < s.r.limits.MaxDirs {
		dir := queue[0]
		queue = queue[1:]
		if _, seen := s.visited[dir]; seen {
			continue
		}
		s.visited[dir] = struct{}{}

		v := s.read(dir, depths[dir])
		if v.err != nil {
			s.record(v)
			continue
		}
		for _, e := range v.entries {
			if !e.IsDir() || s.r.skipped(e.Name()) {
				continue
			}
			child := filepath.Join(dir, e.Name())
			if _, seen := s.visited[child]; seen {
				continue
			}
			if layout.IsBook(child) {
				s.visited[child] = struct{}{}
				s.found = append(s.found, s.r.candidate(child))
				continue
			}
			if v.depth+1 < s.r.limits.MaxDepth {
				depths[child] = v.depth + 1
				queue = append(queue, child)
			}
		}
	}
}
