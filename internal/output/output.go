// Package output persists generated assets: it picks destination paths
// (default stems, format-derived extensions, _n disambiguation) and writes
// bytes through a temp file so a failed run never leaves a partial file at
// the final location.
package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Request describes where one operation's assets should land. An explicit
// Path wins; otherwise the destination is Stem+Ext in the working
// directory, suffixed until it does not collide with an existing file.
type Request struct {
	Path string
	Stem string
	Ext  string // with leading dot
}

// ExtByPrefix maps a provider output format to a file extension by prefix
// match (e.g. "mp3_44100_128" -> ".mp3").
func ExtByPrefix(format string, table map[string]string, fallback string) string {
	for prefix, ext := range table {
		if strings.HasPrefix(format, prefix) {
			return ext
		}
	}
	return fallback
}

// Paths returns n distinct destination paths for the request. With an
// explicit path, multiple assets get _1.._n inserted before the extension;
// default paths are additionally bumped past existing files.
func Paths(n int, req Request) []string {
	if req.Path != "" {
		if n == 1 {
			return []string{req.Path}
		}
		stem, ext := splitExt(req.Path)
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("%s_%d%s", stem, i+1, ext)
		}
		return out
	}
	if n == 1 {
		return []string{uniquePath(req.Stem + req.Ext)}
	}
	out := make([]string, n)
	for i := range out {
		out[i] = uniquePath(fmt.Sprintf("%s_%d%s", req.Stem, i+1, req.Ext))
	}
	return out
}

// Write persists each asset to its own path and returns the paths written,
// in asset order.
func Write(assets [][]byte, req Request) ([]string, error) {
	paths := Paths(len(assets), req)
	written := make([]string, 0, len(assets))
	for i, p := range paths {
		if _, err := copyAtomic(p, bytes.NewReader(assets[i])); err != nil {
			return written, err
		}
		written = append(written, p)
	}
	return written, nil
}

// WriteStream persists a single streamed asset, writing chunks in arrival
// order. It returns the destination path and byte count.
func WriteStream(r io.Reader, req Request) (string, int64, error) {
	p := Paths(1, req)[0]
	n, err := copyAtomic(p, r)
	if err != nil {
		return "", 0, err
	}
	return p, n, nil
}

// Place moves an already-downloaded file into its final path.
func Place(src string, req Request) (string, error) {
	dst := Paths(1, req)[0]
	if src == dst {
		return dst, nil
	}
	if err := ensureDir(dst); err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// Rename can fail across filesystems; fall back to copy.
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("move %s: %w", src, err)
	}
	defer f.Close()
	if _, err := copyAtomic(dst, f); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove %s: %w", src, err)
	}
	return dst, nil
}

func copyAtomic(dst string, r io.Reader) (int64, error) {
	if err := ensureDir(dst); err != nil {
		return 0, err
	}
	dir := filepath.Dir(dst)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(dst), uuid.NewString()))
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}
	n, err := io.Copy(f, r)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("write %s: %w", dst, err)
	}
	return n, nil
}

func ensureDir(p string) error {
	dir := filepath.Dir(p)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func splitExt(p string) (string, string) {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext), ext
}

func uniquePath(p string) string {
	if !exists(p) {
		return p
	}
	stem, ext := splitExt(p)
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !exists(cand) {
			return cand
		}
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
