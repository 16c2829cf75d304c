package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestZstWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "dump.sql.zst")

	w, err := NewZstWriter(dest)
	if err != nil {
		t.Fatalf("NewZstWriter: %v", err)
	}
	payload := strings.Repeat("INSERT INTO posts VALUES (1, 'hello');\n", 200)
	if _, err := io.WriteString(w, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := Verify(dest); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	r, closer, err := OpenZst(dest)
	if err != nil {
		t.Fatalf("OpenZst: %v", err)
	}
	defer closer()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != payload {
		t.Errorf("decompressed payload differs: %d bytes vs %d", len(got), len(payload))
	}
}

func TestVerifyRejectsCorruption(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dump.sql.zst")
	w, err := NewZstWriter(dest)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, strings.Repeat("data", 1000))
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	// Flip bytes in the middle of the stream.
	for i := len(data) / 2; i < len(data)/2+8 && i < len(data); i++ {
		data[i] ^= 0xff
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Verify(dest); err == nil {
		t.Error("Verify accepted a corrupted archive")
	}
}

func TestTarDirExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"uploads/2024/photo.jpg": "jpegdata",
		"uploads/index.html":     "<html></html>",
		"config.json":            `{"ok":true}`,
	})

	dest := filepath.Join(t.TempDir(), "storage.tar.zst")
	if err := TarDir(src, dest); err != nil {
		t.Fatalf("TarDir: %v", err)
	}
	if err := Verify(dest); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	out := t.TempDir()
	if err := Extract(dest, out); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for rel, want := range map[string]string{
		"uploads/2024/photo.jpg": "jpegdata",
		"config.json":            `{"ok":true}`,
	} {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("extracted file %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}
}

func TestTarDirFilteredSkips(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"keep/data.txt":      "keep",
		"services/skip.txt":  "skip",
		"backups/old.tar":    "skip",
		"applications/a.txt": "skip",
	})

	dest := filepath.Join(t.TempDir(), "data.tar.zst")
	err := TarDirFiltered(src, dest, func(rel string) bool {
		top := strings.SplitN(rel, "/", 2)[0]
		return top == "services" || top == "applications" || top == "backups"
	})
	if err != nil {
		t.Fatalf("TarDirFiltered: %v", err)
	}

	out := t.TempDir()
	if err := Extract(dest, out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "keep", "data.txt")); err != nil {
		t.Error("kept file missing from archive")
	}
	for _, rel := range []string{"services", "backups", "applications"} {
		if _, err := os.Stat(filepath.Join(out, rel)); !os.IsNotExist(err) {
			t.Errorf("skipped tree %s present in archive", rel)
		}
	}
}

// writeArchive builds a .tar.zst from explicit headers, bypassing TarDir,
// to model archives produced elsewhere.
func writeArchive(t *testing.T, dest string, build func(tw *tar.Writer)) {
	t.Helper()
	w, err := NewZstWriter(dest)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(w)
	build(tw)
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractRejectsDotDotEntry(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "bad.tar.zst")
	writeArchive(t, dest, func(tw *tar.Writer) {
		tw.WriteHeader(&tar.Header{Name: "../evil.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 4})
		tw.Write([]byte("evil"))
	})

	out := t.TempDir()
	if err := Extract(dest, out); err == nil {
		t.Fatal("Extract accepted a ../ entry")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(out), "evil.txt")); !os.IsNotExist(err) {
		t.Error("escaping file was written")
	}
}

func TestExtractRejectsWriteThroughSymlink(t *testing.T) {
	outside := t.TempDir()
	dest := filepath.Join(t.TempDir(), "bad.tar.zst")
	writeArchive(t, dest, func(tw *tar.Writer) {
		tw.WriteHeader(&tar.Header{Name: "leak", Typeflag: tar.TypeSymlink, Linkname: outside, Mode: 0o777})
		tw.WriteHeader(&tar.Header{Name: "leak/owned.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 5})
		tw.Write([]byte("owned"))
	})

	out := t.TempDir()
	if err := Extract(dest, out); err == nil {
		t.Fatal("Extract wrote through a symlink leaving the destination")
	}
	if _, err := os.Stat(filepath.Join(outside, "owned.txt")); !os.IsNotExist(err) {
		t.Error("file escaped through the symlink")
	}
}

func TestExtractKeepsInternalSymlinks(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "ok.tar.zst")
	writeArchive(t, dest, func(tw *tar.Writer) {
		tw.WriteHeader(&tar.Header{Name: "current", Typeflag: tar.TypeSymlink, Linkname: "releases", Mode: 0o777})
		tw.WriteHeader(&tar.Header{Name: "releases/app.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 2})
		tw.Write([]byte("ok"))
	})

	out := t.TempDir()
	if err := Extract(dest, out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got, err := os.ReadFile(filepath.Join(out, "current", "app.txt")); err != nil || string(got) != "ok" {
		t.Errorf("read through internal symlink = %q, %v", got, err)
	}
}

func TestTarDirRemovesPartialOutputOnError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.tar.zst")
	if err := TarDir(filepath.Join(t.TempDir(), "does-not-exist"), dest); err == nil {
		t.Fatal("TarDir on missing source succeeded")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial archive left behind after failure")
	}
}
