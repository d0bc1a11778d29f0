package deploy

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Pack archives the contents of srcDir into a gzipped tarball at
// outPath. Paths inside the archive are relative to srcDir, so that
// extraction with -C reproduces the directory exactly.
func Pack(ctx context.Context, srcDir, outPath string) (err error) {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", p, err)
		}
		if rel == "." {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		// the bundle is plain files and directories, anything
		// else (sockets, devices, links) has no business in it
		if !fi.Mode().IsRegular() && !fi.IsDir() {
			return fmt.Errorf("unsupported file type in bundle: %s", p)
		}

		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return fmt.Errorf("header for %s: %w", p, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			hdr.Name += "/"
		}

		if err = tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header for %s: %w", p, err)
		}

		if fi.IsDir() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		defer f.Close()

		if _, err = io.Copy(tw, f); err != nil {
			return fmt.Errorf("copy %s: %w", p, err)
		}

		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk bundle: %w", walkErr)
	}

	if err = tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err = gw.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}

	return nil
}

// Unpack extracts a gzipped tarball into dstDir. Entries pointing
// outside of dstDir are rejected.
func Unpack(ctx context.Context, archive, dstDir string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		name := filepath.Join(dstDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(name, filepath.Clean(dstDir)+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes the destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(name, hdr.FileInfo().Mode()); err != nil {
				return fmt.Errorf("mkdir %s: %w", name, err)
			}
		case tar.TypeReg:
			if err = os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return fmt.Errorf("mkdir for %s: %w", name, err)
			}

			w, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode())
			if err != nil {
				return fmt.Errorf("create %s: %w", name, err)
			}

			if _, err = io.Copy(w, tr); err != nil {
				_ = w.Close()
				return fmt.Errorf("write %s: %w", name, err)
			}
			if err = w.Close(); err != nil {
				return fmt.Errorf("close %s: %w", name, err)
			}
		default:
			return fmt.Errorf("unsupported entry type in %q", hdr.Name)
		}
	}
}
