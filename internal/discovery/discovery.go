// Package discovery finds test files under a root directory.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{
	"node_modules",
	".git",
	"vendor",
	"dist",
	"coverage",
	".cache",
}

// DefaultMaxFileSize bounds the size of a candidate file (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// Options controls a Find call.
type Options struct {
	// Patterns are doublestar globs matched against slash-separated paths relative to root.
	Patterns []string
	// Excludes are doublestar globs; a match on a file or directory drops it.
	Excludes []string
	// SkipDirs are extra directory names to skip.
	SkipDirs    []string
	MaxFileSize int64
}

// Find walks root and returns the relative paths of matching files, sorted.
// Per-entry access errors are collected and returned alongside the files.
func Find(ctx context.Context, root string, opts Options) ([]string, error) {
	if len(opts.Patterns) == 0 {
		return nil, errors.New("discovery: no patterns")
	}
	for _, p := range append(slices.Clone(opts.Patterns), opts.Excludes...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("discovery: invalid pattern %q", p)
		}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discovery: %s is not a directory", root)
	}

	skip := make(map[string]struct{}, len(DefaultSkipDirs)+len(opts.SkipDirs))
	for _, name := range append(slices.Clone(DefaultSkipDirs), opts.SkipDirs...) {
		skip[name] = struct{}{}
	}
	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	var (
		files []string
		errs  []error
	)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("access %s: %w", path, err))
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("relative path for %s: %w", path, err))
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if _, ok := skip[d.Name()]; ok || matchAny(opts.Excludes, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matchAny(opts.Patterns, rel) || matchAny(opts.Excludes, rel) {
			return nil
		}
		if maxSize > 0 {
			fi, err := d.Info()
			if err != nil {
				errs = append(errs, fmt.Errorf("stat %s: %w", path, err))
				return nil
			}
			if fi.Size() > maxSize {
				return nil
			}
		}
		files = append(files, rel)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	slices.Sort(files)
	return files, errors.Join(errs...)
}

// Match reports whether rel matches any of the patterns.
func Match(patterns []string, rel string) bool {
	return matchAny(patterns, filepath.ToSlash(rel))
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Resolve expands command-line arguments into files relative to root.
// A file argument is taken as is; a directory argument is searched with opts.
// With no arguments root itself is searched.
func Resolve(ctx context.Context, root string, args []string, opts Options) ([]string, error) {
	if len(args) == 0 {
		return Find(ctx, root, opts)
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(rel string) {
		if _, ok := seen[rel]; !ok {
			seen[rel] = struct{}{}
			out = append(out, rel)
		}
	}
	for _, arg := range args {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("discovery: %w", err)
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil, fmt.Errorf("discovery: %w", err)
			}
			add(filepath.ToSlash(rel))
			continue
		}
		found, err := Find(ctx, path, opts)
		if err != nil && found == nil {
			return nil, err
		}
		for _, f := range found {
			rel, err := filepath.Rel(root, filepath.Join(path, f))
			if err != nil {
				return nil, fmt.Errorf("discovery: %w", err)
			}
			add(filepath.ToSlash(rel))
		}
	}
	slices.Sort(out)
	return out, nil
}
