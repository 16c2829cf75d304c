// Package archive produces and consumes the snapshot payload formats:
// zstd-compressed SQL dumps (.sql.zst) and zstd-compressed tarballs
// (.tar.zst). Everything streams; dumps are never buffered in memory.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ZstWriter wraps a destination file with a zstd encoder. Close flushes the
// encoder before closing the file; on error the half-written file is left
// for the caller to discard.
type ZstWriter struct {
	file *os.File
	enc  *zstd.Encoder
}

// NewZstWriter creates dest (and its parent directory) and returns a
// streaming compressed writer.
func NewZstWriter(dest string) (*ZstWriter, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return &ZstWriter{file: f, enc: enc}, nil
}

func (w *ZstWriter) Write(p []byte) (int, error) { return w.enc.Write(p) }

func (w *ZstWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	return w.file.Close()
}

// TarDir archives the contents of srcDir into a .tar.zst at dest. Paths
// inside the archive are relative to srcDir, so extraction into an empty
// directory reproduces the tree.
func TarDir(srcDir, dest string) error {
	return TarDirFiltered(srcDir, dest, nil)
}

// TarDirFiltered archives srcDir, skipping entries (and their subtrees) for
// which skip returns true. skip receives slash-separated paths relative to
// srcDir.
func TarDirFiltered(srcDir, dest string, skip func(rel string) bool) error {
	w, err := NewZstWriter(dest)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(w)

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if skip != nil && skip(filepath.ToSlash(rel)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		w.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to archive %s: %w", srcDir, err)
	}

	if err := tw.Close(); err != nil {
		w.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to finalize archive %s: %w", dest, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

// Extract unpacks a .tar.zst into destDir. Entries escaping destDir are
// rejected, including entries whose parent directory resolves outside
// destDir through a symlink unpacked earlier.
func Extract(src, destDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open zstd stream %s: %w", src, err)
	}
	defer dec.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	base, err := filepath.EvalSymlinks(filepath.Clean(destDir))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}

	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", src, err)
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive %s contains escaping path %q", src, hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		parent, err := filepath.EvalSymlinks(filepath.Dir(target))
		if err != nil {
			return err
		}
		if parent != base && !strings.HasPrefix(parent, base+string(os.PathSeparator)) {
			return fmt.Errorf("archive %s entry %q resolves outside %s", src, hdr.Name, destDir)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}
		case tar.TypeReg:
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("failed to extract %s from %s: %w", hdr.Name, src, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

// Verify fully decodes a .zst stream, exercising the format's built-in
// integrity checks. Any truncation or corruption fails.
func Verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: invalid zstd stream: %w", path, err)
	}
	defer dec.Close()

	if _, err := io.Copy(io.Discard, dec); err != nil {
		return fmt.Errorf("%s: integrity check failed: %w", path, err)
	}
	return nil
}

// OpenZst returns a streaming reader over a .zst payload. The caller must
// call the returned closer.
func OpenZst(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to open zstd stream %s: %w", path, err)
	}
	return dec, func() {
		dec.Close()
		f.Close()
	}, nil
}
