// Package archive bundles a results directory into a zstd-compressed tarball
// and ships it to Azure Blob Storage.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// BundleSuffix ends every bundle produced by BundleFile.
const BundleSuffix = ".tar.zst"

// Bundle writes every regular file under dir as a zstd-compressed tar
// stream. Entry names are relative to dir and forward-slashed. Returns the
// number of files written.
func Bundle(dir string, w io.Writer) (int, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	count := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return err
		}

		count++
		return nil
	})
	if walkErr != nil {
		return 0, fmt.Errorf("bundling %s: %w", dir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("finalize tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize zstd: %w", err)
	}
	if count == 0 {
		return 0, fmt.Errorf("nothing to archive in %s", dir)
	}
	return count, nil
}

// BundleFile bundles dir into a sibling <dir>.tar.zst and returns its path
// and file count. A failed bundle is removed rather than left half-written.
func BundleFile(dir string) (string, int, error) {
	path := filepath.Clean(dir) + BundleSuffix

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create bundle: %w", err)
	}

	count, err := Bundle(dir, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, count, nil
}
