package builder

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// extractSources unpacks each archive source into ws.Src and copies
// non-archive sources into ws.Files (spec.md §4.7 step 5). It returns the
// resolved BUILD_DIR: the sole top-level directory of src/ if exactly one
// exists, else SRC_DIR itself.
func extractSources(job *Job, ws Workspace, localPaths map[string]string) (buildDir string, err error) {
	for _, src := range job.Plan.Sources {
		path := localPaths[src.URI]
		if isArchiveSource(path) {
			if err := extractArchive(path, ws.Src); err != nil {
				return "", fmt.Errorf("builder: extract %s: %w", path, err)
			}
		} else {
			dest := filepath.Join(ws.Files, filepath.Base(path))
			if err := copyFile(path, dest); err != nil {
				return "", fmt.Errorf("builder: copy source %s: %w", path, err)
			}
		}
	}
	return resolveBuildDir(ws.Src)
}

func resolveBuildDir(srcDir string) (string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return "", fmt.Errorf("builder: read src dir: %w", err)
	}
	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	if len(entries) == len(dirs) && len(dirs) == 1 {
		return filepath.Join(srcDir, dirs[0].Name()), nil
	}
	return srcDir, nil
}

func extractArchive(path, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	if strings.HasSuffix(path, ".zip") {
		return extractZipUnsupported(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".tar.bz2") || strings.HasSuffix(path, ".tbz2"):
		r = bzip2.NewReader(f)
	case strings.HasSuffix(path, ".tar.xz") || strings.HasSuffix(path, ".txz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return err
		}
		r = xr
	case strings.HasSuffix(path, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.Contains(hdr.Name, "..") {
			return fmt.Errorf("builder: suspect archive entry path %q", hdr.Name)
		}
		target := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			os.MkdirAll(filepath.Dir(target), 0o755)
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

func extractZipUnsupported(path string) error {
	return fmt.Errorf("builder: zip sources are not supported: %s", path)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
