package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// List reads the member table of archivePath without touching the filesystem.
func (a *Archiver) List(archivePath string) ([]Member, error) {
	f, err := a.fs.Open(archivePath)
	if err != nil {
		return nil, &OpError{Op: "list", Path: archivePath, Err: fmt.Errorf("open archive: %w", err)}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, &OpError{Op: "list", Path: archivePath, Err: fmt.Errorf("gzip reader: %w", err)}
	}
	defer gz.Close()

	var members []Member
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}
		if err != nil {
			return nil, &OpError{Op: "list", Path: archivePath, Err: fmt.Errorf("read tar: %w", err)}
		}

		m := Member{
			Name:    hdr.Name,
			Size:    hdr.Size,
			Mode:    hdr.FileInfo().Mode(),
			ModTime: hdr.ModTime,
		}
		switch hdr.Typeflag {
		case tar.TypeReg:
			m.Kind = KindFile
		case tar.TypeSymlink:
			m.Kind = KindSymlink
			m.Linkname = hdr.Linkname
		default:
			m.Kind = KindOther
		}
		members = append(members, m)
	}
}
