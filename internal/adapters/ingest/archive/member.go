package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	perr "birddb/internal/platform/errors"
)

// Member is a single archive member exposed as a sequential byte stream
type Member struct {
	name string
	size int64
	rc   io.ReadCloser

	// closers are shut down in order after rc
	closers []io.Closer
}

// Name returns the member's path inside the archive
func (m *Member) Name() string { return m.name }

// Size returns the best-effort byte size of the member stream.
// For gzip members inside a tar this is the compressed size
func (m *Member) Size() int64 { return m.size }

// Read implements io.Reader over the decompressed member bytes
func (m *Member) Read(p []byte) (int, error) { return m.rc.Read(p) }

// Close closes the member stream and every underlying container handle
func (m *Member) Close() error {
	var first error
	if err := m.rc.Close(); err != nil {
		first = err
	}
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenMember opens the first member of the archive at path whose name ends in
// suffix. Tar members are assumed gzip-compressed and are decompressed
// transparently; zip members stream as stored
func OpenMember(path, suffix string) (*Member, error) {
	switch {
	case strings.HasSuffix(path, ".tar"):
		return openTarMember(path, suffix)
	case strings.HasSuffix(path, ".zip"):
		return openZipMember(path, suffix)
	default:
		return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "unsupported archive container: %s", filepath.Base(path))
	}
}

// SamplingMember opens the sampling-events member of the archive.
// Upstream naming: tar carries <base>_sampling.txt.gz, zip carries <base>_sampling.txt
func SamplingMember(path string) (*Member, error) {
	if strings.HasSuffix(path, ".tar") {
		return OpenMember(path, "_sampling.txt.gz")
	}
	return OpenMember(path, "_sampling.txt")
}

// ObservationsMember opens the observations member of the archive.
// The member base name is the token after the last underscore in the archive file name,
// e.g. ebd_US-NY_relFeb-2024.tar -> relFeb-2024.txt.gz. Mirrors the upstream
// distribution layout
func ObservationsMember(path string) (*Member, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".tar"), ".zip")
	if i := strings.LastIndex(base, "_"); i >= 0 {
		base = base[i+1:]
	}
	if strings.HasSuffix(path, ".tar") {
		return OpenMember(path, base+".txt.gz")
	}
	return OpenMember(path, base+".txt")
}

func openTarMember(path, suffix string) (*Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "open archive %s", path)
	}
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = f.Close()
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read tar %s", path)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, suffix) {
			continue
		}
		if strings.HasSuffix(hdr.Name, ".gz") {
			gz, err := gzip.NewReader(tr)
			if err != nil {
				_ = f.Close()
				return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "gzip member %s", hdr.Name)
			}
			return &Member{name: hdr.Name, size: hdr.Size, rc: gz, closers: []io.Closer{f}}, nil
		}
		return &Member{name: hdr.Name, size: hdr.Size, rc: io.NopCloser(tr), closers: []io.Closer{f}}, nil
	}
	_ = f.Close()
	return nil, perr.Newf(perr.ErrorCodeNotFound, "no member with suffix %s in %s", suffix, filepath.Base(path))
}

func openZipMember(path, suffix string) (*Member, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "open archive %s", path)
	}
	for _, zf := range zr.File {
		if !strings.HasSuffix(zf.Name, suffix) {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			_ = zr.Close()
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "open member %s", zf.Name)
		}
		if strings.HasSuffix(zf.Name, ".gz") {
			gz, err := gzip.NewReader(rc)
			if err != nil {
				_ = rc.Close()
				_ = zr.Close()
				return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "gzip member %s", zf.Name)
			}
			return &Member{name: zf.Name, size: int64(zf.UncompressedSize64), rc: gz, closers: []io.Closer{rc, zr}}, nil
		}
		return &Member{name: zf.Name, size: int64(zf.UncompressedSize64), rc: rc, closers: []io.Closer{zr}}, nil
	}
	_ = zr.Close()
	return nil, perr.Newf(perr.ErrorCodeNotFound, "no member with suffix %s in %s", suffix, filepath.Base(path))
}
