package parser

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var errMemberTooLarge = errors.New("archive member exceeds size limit")

// ArchiveParser expands a ZIP into a scoped temp dir and extracts its first
// supported members. Nested archives are never processed.
type ArchiveParser struct {
	ex *Extractor
}

func (p *ArchiveParser) Parse(ctx context.Context, path string) Result {
	log := p.ex.log.With("archive", filepath.Base(path))

	tmpDir, err := os.MkdirTemp("", "deid-zip-*")
	if err != nil {
		return failed("processing ZIP file: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := p.expand(path, tmpDir); err != nil {
		return failed("processing ZIP file: %w", err)
	}

	var members []string
	err = filepath.WalkDir(tmpDir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch Resolve(fp) {
		case FormatUnsupported, FormatArchive:
			return nil
		}
		members = append(members, fp)
		return nil
	})
	if err != nil {
		return failed("processing ZIP file: walk: %w", err)
	}

	res := Result{}
	if limit := p.ex.opts.ArchiveMaxMembers; len(members) > limit {
		res.Truncated = true
		res.Skipped = len(members) - limit
		log.Warn("archive member cap reached", "found", len(members), "processed", limit)
		members = members[:limit]
	}

	var parts []string
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return failed("processing ZIP file: %w", err)
		}
		rel, _ := filepath.Rel(tmpDir, m)
		rel = filepath.ToSlash(rel)

		sub := p.ex.Extract(ctx, m)
		if !sub.OK() {
			log.Info("skipping archive member", "member", rel, "status", sub.Status, "error", sub.Err)
			continue
		}
		parts = append(parts, "=== FILE: "+rel+" ===", sub.Text, "")
	}

	if len(parts) == 0 {
		res.Status = StatusNoText
		return res
	}
	res.Status = StatusOK
	res.Text = strings.Join(parts, "\n")
	return res
}

// expand writes every regular member under dir. Members whose names escape
// dir or that exceed the size cap are skipped.
func (p *ArchiveParser) expand(path, dir string) error {
	// Non-local names are still readable; safeJoin filters them below.
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	defer zr.Close()

	limit := p.ex.opts.ArchiveMaxMemberBytes
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		dest, err := safeJoin(dir, zf.Name)
		if err != nil {
			p.ex.log.Warn("skipping unsafe archive member", "member", zf.Name)
			continue
		}
		if zf.UncompressedSize64 > uint64(limit) {
			p.ex.log.Warn("skipping oversized archive member", "member", zf.Name, "bytes", zf.UncompressedSize64)
			continue
		}
		if err := writeMember(zf, dest, limit); err != nil {
			if errors.Is(err, errMemberTooLarge) {
				p.ex.log.Warn("skipping oversized archive member", "member", zf.Name)
				continue
			}
			return fmt.Errorf("extract %s: %w", zf.Name, err)
		}
	}
	return nil
}

func writeMember(zf *zip.File, dest string, limit int64) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > limit {
		os.Remove(dest)
		return errMemberTooLarge
	}
	return nil
}

// safeJoin joins an archive member name onto base, rejecting names that
// would land outside it.
func safeJoin(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrUnsafePath
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return cleaned, nil
}
