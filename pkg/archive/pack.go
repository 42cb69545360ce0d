package archive

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// PackInput is the set of filesystem entries destined for one archive,
// as assembled by the builder's packaging stage (spec.md §4.7 step 9).
type PackInput struct {
	Info Info
	// Root is the package staging directory (PKG_DIR); its tree is
	// archived rooted at "/".
	Root string
	// ExtraInstall, if non-empty, is written verbatim as .INSTALL.
	ExtraInstall string
}

// Pack walks Root and writes the zstd-compressed tar archive to w,
// in the layout spec.md §4.4 describes: .PKGINFO, .FILELIST, optional
// .INSTALL, then the packaged tree. Symlinks are archived as symlinks;
// FIFOs, char, and block devices are preserved; regular files are
// normalized to uid=0/gid=0 with a deterministic mtime.
func Pack(w io.Writer, in PackInput) (entries []Entry, archiveHash string, err error) {
	entries, err = walkEntries(in.Root)
	if err != nil {
		return nil, "", err
	}

	hasher := sha256.New()
	zw, err := zstd.NewWriter(io.MultiWriter(w, hasher), zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, "", fmt.Errorf("archive: open zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	info := in.Info
	for _, e := range entries {
		if e.IsConfig {
			info.BackupFiles = append(info.BackupFiles, e.Path)
		}
	}

	if err := writeMetaFile(tw, ".PKGINFO", encodePKGINFO(info)); err != nil {
		return nil, "", err
	}
	if err := writeMetaFile(tw, ".FILELIST", encodeFilelist(entries)); err != nil {
		return nil, "", err
	}
	if in.ExtraInstall != "" {
		if err := writeMetaFile(tw, ".INSTALL", []byte(in.ExtraInstall)); err != nil {
			return nil, "", err
		}
	}

	for _, e := range entries {
		if err := writeEntry(tw, in.Root, e); err != nil {
			return nil, "", err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, "", fmt.Errorf("archive: close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("archive: close zstd writer: %w", err)
	}
	return entries, hex.EncodeToString(hasher.Sum(nil)), nil
}

func writeMetaFile(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:       name,
		Mode:       0o644,
		Size:       int64(len(data)),
		ModTime:    ReproducibleTime,
		AccessTime: ReproducibleTime,
		ChangeTime: ReproducibleTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: write %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("archive: write %s body: %w", name, err)
	}
	return nil
}

func encodeFilelist(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Path)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// walkEntries collects a deterministic, sorted list of filesystem entries
// under root, rejecting empty or traversal-suspect paths (spec.md §4.4
// "Empty or traversal-suspect entries are rejected").
func walkEntries(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.Walk(root, func(path string, fi fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "" || rel == "." || strings.Contains(rel, "..") {
			return fmt.Errorf("archive: traversal-suspect entry %q", rel)
		}
		archivePath := "/" + filepath.ToSlash(rel)

		e := Entry{Path: archivePath, Mode: uint32(fi.Mode().Perm())}
		switch {
		case fi.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("archive: readlink %s: %w", path, err)
			}
			e.Kind = KindSymlink
			e.LinkName = target
		case fi.IsDir():
			e.Kind = KindDir
		case fi.Mode()&os.ModeNamedPipe != 0:
			e.Kind = KindFifo
		case fi.Mode()&os.ModeCharDevice != 0:
			e.Kind = KindChar
		case fi.Mode()&os.ModeDevice != 0:
			e.Kind = KindBlock
		case fi.Mode().IsRegular():
			e.Kind = KindRegular
			e.Size = fi.Size()
			hash, err := hashFile(path)
			if err != nil {
				return err
			}
			e.Hash = hash
		default:
			return fmt.Errorf("archive: unsupported file type for %s", path)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("archive: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeEntry(tw *tar.Writer, root string, e Entry) error {
	hdr := &tar.Header{
		Name:       strings.TrimPrefix(e.Path, "/"),
		Mode:       int64(e.Mode),
		Uid:        0,
		Gid:        0,
		ModTime:    ReproducibleTime,
		AccessTime: ReproducibleTime,
		ChangeTime: ReproducibleTime,
	}
	switch e.Kind {
	case KindDir:
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
	case KindSymlink:
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = e.LinkName
	case KindFifo:
		hdr.Typeflag = tar.TypeFifo
	case KindChar:
		hdr.Typeflag = tar.TypeChar
		hdr.Devmajor, hdr.Devminor = e.Devmajor, e.Devminor
	case KindBlock:
		hdr.Typeflag = tar.TypeBlock
		hdr.Devmajor, hdr.Devminor = e.Devmajor, e.Devminor
	case KindRegular:
		hdr.Typeflag = tar.TypeReg
		hdr.Size = e.Size
	default:
		return fmt.Errorf("archive: unknown entry kind %q", e.Kind)
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: write header for %s: %w", e.Path, err)
	}
	if e.Kind == KindRegular {
		f, err := os.Open(filepath.Join(root, strings.TrimPrefix(e.Path, "/")))
		if err != nil {
			return fmt.Errorf("archive: open %s: %w", e.Path, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archive: write body for %s: %w", e.Path, err)
		}
	}
	return nil
}

var errEmptyArchive = errors.New("archive: archive contains no entries")
