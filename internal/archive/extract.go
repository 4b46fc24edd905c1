package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Extract restores every member of archivePath into dir, replacing entries
// that already exist. Directory, special and filtered members are skipped and
// not counted; members with nested or escaping names fail the extraction.
func (a *Archiver) Extract(archivePath, dir string) (Summary, error) {
	var (
		sum     Summary
		touched bool
	)
	opErr := func(err error) (Summary, error) {
		return sum, &OpError{Op: "extract", Path: archivePath, Touched: touched, Err: err}
	}

	f, err := a.fs.Open(archivePath)
	if err != nil {
		return opErr(fmt.Errorf("open archive: %w", err))
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return opErr(fmt.Errorf("gzip reader: %w", err))
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return opErr(fmt.Errorf("read tar: %w", err))
		}

		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeSymlink {
			a.logger.Debug("extract skip unsupported member", "name", hdr.Name, "type", string(hdr.Typeflag))
			continue
		}

		name, err := memberName(hdr.Name)
		if err != nil {
			return opErr(err)
		}
		if a.skip(name) {
			a.logger.Debug("extract skip ignored", "name", name)
			continue
		}
		target := filepath.Join(dir, name)

		removed, err := a.clear(target)
		touched = touched || removed
		if err != nil {
			return opErr(fmt.Errorf("replace %q: %w", name, err))
		}

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			if err := a.symlink(hdr.Linkname, target); err != nil {
				return opErr(fmt.Errorf("symlink %q: %w", name, err))
			}
			touched = true

		case tar.TypeReg:
			n, created, err := a.writeFile(target, hdr, tr)
			touched = touched || created
			if err != nil {
				return opErr(fmt.Errorf("write %q: %w", name, err))
			}
			sum.Bytes += n
		}
		sum.Members++
	}

	return sum, nil
}

// clear removes an existing non-directory entry at target so the member can
// replace it without following a symlink that lives there.
func (a *Archiver) clear(target string) (bool, error) {
	fi, err := a.lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fi.IsDir() {
		return false, fmt.Errorf("%s is a directory", target)
	}
	if err := a.fs.Remove(target); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Archiver) writeFile(target string, hdr *tar.Header, r io.Reader) (int64, bool, error) {
	out, err := a.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
	if err != nil {
		return 0, false, err
	}

	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, true, err
	}

	if !hdr.ModTime.IsZero() {
		if err := a.fs.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
			a.logger.Debug("extract chtimes failed", "path", target, "error", err)
		}
	}
	return n, true, nil
}
