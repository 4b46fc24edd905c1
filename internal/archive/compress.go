package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// Compress replaces archivePath with a fresh tar.gz holding every immediate
// entry of dir. The existing archive is removed first and its absence is an
// error: a missing archive means the sync target went away.
// Subdirectories, special files and filtered names are skipped.
func (a *Archiver) Compress(dir, archivePath string) (Summary, error) {
	opErr := func(touched bool, err error) (Summary, error) {
		return Summary{}, &OpError{Op: "compress", Path: archivePath, Touched: touched, Err: err}
	}

	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return opErr(false, fmt.Errorf("read dir: %w", err))
	}

	if err := a.fs.Remove(archivePath); err != nil {
		return opErr(false, fmt.Errorf("remove archive: %w", err))
	}

	// nothing has been written yet, so no write notification follows
	f, err := a.fs.Create(archivePath)
	if err != nil {
		return opErr(false, fmt.Errorf("create archive: %w", err))
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	members := 0
	for _, fi := range entries {
		name := fi.Name()
		if a.skip(name) {
			a.logger.Debug("compress skip ignored", "name", name)
			continue
		}

		added, err := a.addEntry(tw, filepath.Join(dir, name), fi)
		if err != nil {
			return opErr(true, fmt.Errorf("add %q: %w", name, err))
		}
		if added {
			members++
		}
	}

	if err := tw.Close(); err != nil {
		return opErr(true, fmt.Errorf("close tar: %w", err))
	}
	if err := gz.Close(); err != nil {
		return opErr(true, fmt.Errorf("close gzip: %w", err))
	}
	if err := f.Close(); err != nil {
		return opErr(true, fmt.Errorf("close archive: %w", err))
	}

	var size int64
	if fi, err := a.fs.Stat(archivePath); err == nil {
		size = fi.Size()
	}

	a.logger.Debug("compress done", "archive", archivePath, "members", members, "size", humanize.Bytes(uint64(size)))
	return Summary{Members: members, Bytes: size}, nil
}

func (a *Archiver) addEntry(tw *tar.Writer, fullPath string, fi os.FileInfo) (bool, error) {
	mode := fi.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		target, err := a.readlink(fullPath)
		if err != nil {
			return false, err
		}
		hdr, err := tar.FileInfoHeader(fi, target)
		if err != nil {
			return false, err
		}
		hdr.Name = fi.Name()
		return true, tw.WriteHeader(hdr)

	case mode.IsRegular():
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return false, err
		}
		hdr.Name = fi.Name()
		if err := tw.WriteHeader(hdr); err != nil {
			return false, err
		}

		src, err := a.fs.Open(fullPath)
		if err != nil {
			return false, err
		}
		defer src.Close()

		if _, err := io.Copy(tw, src); err != nil {
			return false, err
		}
		return true, nil

	default:
		a.logger.Debug("compress skip unsupported entry", "path", fullPath, "mode", mode.String())
		return false, nil
	}
}
