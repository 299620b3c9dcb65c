// Package fileutil holds the file helpers shared by exports and the CLI.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Pending is a hidden temp file that becomes visible only on Commit, so a
// failed or cancelled write never leaves a partial artifact behind.
type Pending struct {
	file      *os.File
	dir       string
	committed bool
}

// CreatePending creates dir if needed and opens a temp file inside it.
func CreatePending(dir string) (*Pending, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".pending-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &Pending{file: f, dir: dir}, nil
}

// Write implements io.Writer.
func (p *Pending) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

// Commit syncs the temp file and renames it to name inside the directory.
func (p *Pending) Commit(name string) (string, error) {
	if p.committed {
		return "", errors.New("pending file already committed")
	}
	if err := p.file.Sync(); err != nil {
		_ = p.Discard()
		return "", fmt.Errorf("sync: %w", err)
	}
	if err := p.file.Close(); err != nil {
		_ = os.Remove(p.file.Name())
		return "", fmt.Errorf("close: %w", err)
	}
	path := filepath.Join(p.dir, name)
	if err := os.Rename(p.file.Name(), path); err != nil {
		_ = os.Remove(p.file.Name())
		return "", fmt.Errorf("rename: %w", err)
	}
	p.committed = true
	return path, nil
}

// Discard removes the temp file. It is a no-op after Commit.
func (p *Pending) Discard() error {
	if p.committed {
		return nil
	}
	_ = p.file.Close()
	if err := os.Remove(p.file.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified copies src to dst and compares SHA256 and size.
// dst is removed on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	srcSum, err := hashFile(src)
	if err != nil {
		return err
	}
	dstSum, err := hashFile(dst)
	if err != nil {
		return err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("stat copy: %w", err)
	}
	if dstInfo.Size() != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), dstInfo.Size())
	}
	if !bytes.Equal(srcSum, dstSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", filepath.Base(path), err)
	}
	return h.Sum(nil), nil
}
