package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/core/ports"
)

// Limits bound what a single image archive may expand into.
type Limits struct {
	MaxArchiveBytes   int64
	MaxExtractedBytes int64
	MaxFiles          int
}

func DefaultLimits() Limits {
	return Limits{
		MaxArchiveBytes:   200 << 20,
		MaxExtractedBytes: 1 << 30,
		MaxFiles:          5000,
	}
}

// Unpacker extracts zip archives of product pictures.
type Unpacker struct {
	storage ports.ObjectStorage
	limits  Limits
}

func New(storage ports.ObjectStorage, limits Limits) *Unpacker {
	def := DefaultLimits()
	if limits.MaxArchiveBytes <= 0 {
		limits.MaxArchiveBytes = def.MaxArchiveBytes
	}
	if limits.MaxExtractedBytes <= 0 {
		limits.MaxExtractedBytes = def.MaxExtractedBytes
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = def.MaxFiles
	}
	return &Unpacker{storage: storage, limits: limits}
}

// Unpack downloads the archive stored under key and extracts it into dest.
func (u *Unpacker) Unpack(ctx context.Context, key, dest string) (int, error) {
	if u.storage == nil {
		return 0, errors.New("archive unpacker has no object storage")
	}
	src, err := u.storage.Open(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open image archive: %w", err)
	}
	defer src.Close()

	spool, err := os.CreateTemp("", "images-*.zip")
	if err != nil {
		return 0, fmt.Errorf("create archive spool: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, io.LimitReader(src, u.limits.MaxArchiveBytes+1))
	if err != nil {
		return 0, fmt.Errorf("download image archive: %w", err)
	}
	if n > u.limits.MaxArchiveBytes {
		return 0, domain.WrapError(domain.ErrInvalidInput, "download image archive",
			fmt.Errorf("archive exceeds %d bytes", u.limits.MaxArchiveBytes))
	}
	if err := spool.Close(); err != nil {
		return 0, fmt.Errorf("flush archive spool: %w", err)
	}
	return u.UnpackFile(ctx, spool.Name(), dest)
}

// UnpackFile extracts a zip archive on disk into dest. Directory structure is
// kept; entries escaping dest, links and macOS resource forks are rejected or
// skipped.
func (u *Unpacker) UnpackFile(ctx context.Context, path, dest string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "open image archive", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, fmt.Errorf("resolve unpack directory: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("create unpack directory: %w", err)
	}

	var (
		files   int
		written int64
	)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		if skipEntry(f) {
			continue
		}
		target, err := entryPath(root, f.Name)
		if err != nil {
			return files, domain.WrapError(domain.ErrInvalidInput, "unpack image archive", err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, fmt.Errorf("create %s: %w", f.Name, err)
			}
			continue
		}

		files++
		if files > u.limits.MaxFiles {
			return files, domain.WrapError(domain.ErrInvalidInput, "unpack image archive",
				fmt.Errorf("archive holds more than %d files", u.limits.MaxFiles))
		}
		n, err := extract(f, target, u.limits.MaxExtractedBytes-written)
		written += n
		if err != nil {
			return files, err
		}
	}
	return files, nil
}

func skipEntry(f *zip.File) bool {
	name := filepath.ToSlash(f.Name)
	if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(filepath.Base(name), "._") {
		return true
	}
	mode := f.Mode()
	return !mode.IsDir() && !mode.IsRegular()
}

func entryPath(root, name string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("entry %q has an absolute path", name)
	}
	target := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the archive root", name)
	}
	return target, nil
}

func extract(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Dir(f.Name), err)
	}
	src, err := f.Open()
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "open archive entry "+f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", f.Name, err)
	}
	n, copyErr := io.Copy(dst, io.LimitReader(src, budget+1))
	closeErr := dst.Close()
	if copyErr != nil {
		return n, domain.WrapError(domain.ErrInvalidInput, "extract "+f.Name, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("write %s: %w", f.Name, closeErr)
	}
	if n > budget {
		return n, domain.WrapError(domain.ErrInvalidInput, "extract "+f.Name,
			errors.New("archive expands beyond the extraction limit"))
	}
	return n, nil
}
