package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	perr "birddb/internal/platform/errors"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func writeTar(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create tar: %v", err)
	}
	tw := tar.NewWriter(f)
	for name, data := range members {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(data))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
}

func writeZip(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
}

func TestSamplingMember_Tar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ebd_US-NY_relFeb-2024.tar")
	writeTar(t, path, map[string][]byte{
		"ebd_US-NY_relFeb-2024_sampling.txt.gz": gzipBytes(t, "HEADER\nrow\n"),
		"relFeb-2024.txt.gz":                    gzipBytes(t, "OBS\n"),
	})

	m, err := SamplingMember(path)
	if err != nil {
		t.Fatalf("SamplingMember: %v", err)
	}
	defer m.Close()

	got, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(got) != "HEADER\nrow\n" {
		t.Fatalf("member content = %q", got)
	}
	if m.Name() != "ebd_US-NY_relFeb-2024_sampling.txt.gz" {
		t.Fatalf("member name = %q", m.Name())
	}
}

func TestObservationsMember_Tar_NameDerivation(t *testing.T) {
	// the observations member base is the last underscore token of the archive name
	path := filepath.Join(t.TempDir(), "ebd_US-NY_relFeb-2024.tar")
	writeTar(t, path, map[string][]byte{
		"ebd_US-NY_relFeb-2024_sampling.txt.gz": gzipBytes(t, "SAMPLING\n"),
		"relFeb-2024.txt.gz":                    gzipBytes(t, "OBSDATA\n"),
	})

	m, err := ObservationsMember(path)
	if err != nil {
		t.Fatalf("ObservationsMember: %v", err)
	}
	defer m.Close()

	got, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(got) != "OBSDATA\n" {
		t.Fatalf("member content = %q", got)
	}
}

func TestSamplingMember_Zip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ebd_US-NY_relFeb-2024.zip")
	writeZip(t, path, map[string][]byte{
		"ebd_US-NY_relFeb-2024_sampling.txt": []byte("ZIPSAMPLING\n"),
		"relFeb-2024.txt":                    []byte("ZIPOBS\n"),
	})

	m, err := SamplingMember(path)
	if err != nil {
		t.Fatalf("SamplingMember: %v", err)
	}
	defer m.Close()

	got, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(got) != "ZIPSAMPLING\n" {
		t.Fatalf("member content = %q", got)
	}
	if m.Size() != int64(len("ZIPSAMPLING\n")) {
		t.Fatalf("size = %d", m.Size())
	}
}

func TestObservationsMember_Zip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ebd_US-NY_relFeb-2024.zip")
	writeZip(t, path, map[string][]byte{
		"ebd_US-NY_relFeb-2024_sampling.txt": []byte("ZIPSAMPLING\n"),
		"relFeb-2024.txt":                    []byte("ZIPOBS\n"),
	})

	m, err := ObservationsMember(path)
	if err != nil {
		t.Fatalf("ObservationsMember: %v", err)
	}
	defer m.Close()

	got, err := io.ReadAll(m)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(got) != "ZIPOBS\n" {
		t.Fatalf("member content = %q", got)
	}
}

func TestOpenMember_UnsupportedContainer(t *testing.T) {
	_, err := OpenMember("/tmp/whatever.rar", "_sampling.txt")
	if err == nil {
		t.Fatalf("expected error for unsupported container")
	}
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", perr.CodeOf(err))
	}
}

func TestOpenMember_MissingMember(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ebd_empty.tar")
	writeTar(t, path, map[string][]byte{
		"something_else.txt.gz": gzipBytes(t, "x"),
	})

	_, err := OpenMember(path, "_sampling.txt.gz")
	if err == nil {
		t.Fatalf("expected error for missing member")
	}
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", perr.CodeOf(err))
	}
}
