// Package archive packs project templates into gzip-compressed tarballs and
// unpacks them safely.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/concentricsky/djenesis/internal/errors"
)

// MaxSize bounds the total uncompressed bytes Unpack will write.
const MaxSize = 256 << 20

// Pack writes every file and directory of fsys to w as a .tar.gz, preserving
// permission bits. Entries are written in lexical order.
func Pack(w io.Writer, fsys fs.FS) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = p
		if info.IsDir() {
			hdr.Name += "/"
		}
		// embed.FS reports 0444 for every file; keep the bits but make
		// sure the owner can write what we unpack later.
		hdr.Mode |= 0200
		hdr.Uname, hdr.Gname = "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// Unpack extracts a .tar.gz stream into dir. Entries that would land outside
// dir, links, and archives larger than MaxSize are rejected.
func Unpack(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.New("E154").Wrap(err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var total int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.New("E154").Wrap(err)
		}

		name := strings.TrimSuffix(path.Clean(hdr.Name), "/")
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return errors.New("E154").WithDetail("entry " + hdr.Name + " escapes the target directory")
		}
		target := filepath.Join(dir, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader:
			continue
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			total += hdr.Size
			if total > MaxSize {
				return errors.New("E154").WithDetail(fmt.Sprintf("archive exceeds %d bytes", MaxSize))
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()|0200, hdr.Size); err != nil {
				return err
			}
		default:
			return errors.New("E154").WithDetail(fmt.Sprintf("entry %s has unsupported type %q", hdr.Name, hdr.Typeflag))
		}
	}
}

func writeFile(target string, r io.Reader, mode fs.FileMode, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		return errors.New("E154").Wrap(err)
	}
	return f.Close()
}
