package mailstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Load reads every *.txt thread in dir except Colleagues.txt, in file name
// order. Entries that resolve outside dir are skipped and recorded in
// Blocked; unreadable files are recorded in Errors. Only a missing or
// unreadable directory fails the load.
func Load(dir string, opts Options, logger *zap.Logger) (*LoadResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	root, err := resolveDir(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading email directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if IsThreadFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := &LoadResult{Dir: root}
	for _, name := range names {
		path, err := containedPath(root, name)
		if err != nil {
			logger.Warn("thread file resolves outside email directory",
				zap.String("file", name))
			result.Blocked = append(result.Blocked, name)
			continue
		}

		raw, err := readLimited(path, opts.MaxFileBytes)
		if err != nil {
			logger.Warn("skipping thread file", zap.String("file", name), zap.Error(err))
			result.Errors = append(result.Errors, FileError{File: name, Err: err.Error()})
			continue
		}

		msgs := ParseThread(raw, name, opts.MaxBodyLength)
		logger.Debug("parsed thread", zap.String("file", name), zap.Int("messages", len(msgs)))
		result.Files++
		result.Messages = append(result.Messages, msgs...)
	}

	logger.Info("loaded emails",
		zap.String("dir", root),
		zap.Int("files", result.Files),
		zap.Int("messages", len(result.Messages)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("blocked", len(result.Blocked)))
	return result, nil
}

// ParseThreads parses in-memory threads keyed by thread name, in name
// order. Names are treated like file names: only *.txt entries other than
// Colleagues.txt are parsed.
func ParseThreads(threads map[string]string, opts Options) []Message {
	opts = opts.withDefaults()
	names := make([]string, 0, len(threads))
	for name := range threads {
		if IsThreadFile(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var msgs []Message
	for _, name := range names {
		msgs = append(msgs, ParseThread(threads[name], name, opts.MaxBodyLength)...)
	}
	return msgs
}

// IsThreadFile reports whether name is parsed as a thread.
func IsThreadFile(name string) bool {
	return strings.HasSuffix(name, ".txt") && !strings.EqualFold(name, ColleaguesFile)
}

func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving email directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDirNotFound, dir)
		}
		return "", fmt.Errorf("resolving email directory: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat email directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDirNotFound, dir)
	}
	return resolved, nil
}

// containedPath resolves name inside root and rejects anything whose real
// path leaves root.
func containedPath(root, name string) (string, error) {
	resolved, err := filepath.EvalSymlinks(filepath.Join(root, name))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s escapes %s", name, root)
	}
	return resolved, nil
}

func readLimited(path string, limit int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file")
	}
	if info.Size() > limit {
		return "", fmt.Errorf("file size %d exceeds limit %d", info.Size(), limit)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
