package archive

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Reader streams a .wright.tar.zst archive's metadata and entries without
// requiring the whole archive to be buffered in memory.
type Reader struct {
	zr *zstd.Decoder
	tr *tar.Reader

	Info     Info
	Filelist []string
	Install  string

	pending *tar.Header
}

// Open reads the .PKGINFO, .FILELIST, and optional .INSTALL members from
// the head of the archive stream, then positions the reader at the first
// filesystem entry (spec.md §4.4 "Internal layout").
func Open(r io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: open zstd reader: %w", err)
	}
	tr := tar.NewReader(zr)
	ar := &Reader{zr: zr, tr: tr}

	for _, want := range []string{".PKGINFO", ".FILELIST"} {
		hdr, err := tr.Next()
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("archive: read %s: %w", want, err)
		}
		if hdr.Name != want {
			zr.Close()
			return nil, fmt.Errorf("archive: expected %s, got %s", want, hdr.Name)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("archive: read %s body: %w", want, err)
		}
		switch want {
		case ".PKGINFO":
			info, err := decodePKGINFO(data)
			if err != nil {
				zr.Close()
				return nil, err
			}
			ar.Info = info
		case ".FILELIST":
			ar.Filelist = splitLines(string(data))
		}
	}

	// .INSTALL is optional; peek at the next header.
	hdr, err := tr.Next()
	if err != nil {
		if err == io.EOF {
			zr.Close()
			return nil, errEmptyArchive
		}
		zr.Close()
		return nil, fmt.Errorf("archive: read next header: %w", err)
	}
	if hdr.Name == ".INSTALL" {
		data, err := io.ReadAll(tr)
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("archive: read .INSTALL body: %w", err)
		}
		ar.Install = string(data)
	} else {
		ar.pending = hdr
	}
	return ar, nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Next returns the next packaged filesystem entry and its header, or
// io.EOF when exhausted. Entry bodies (for regular files) must be read
// from the returned io.Reader before calling Next again.
func (ar *Reader) Next() (Entry, io.Reader, error) {
	var hdr *tar.Header
	var err error
	if ar.pending != nil {
		hdr, ar.pending = ar.pending, nil
	} else {
		hdr, err = ar.tr.Next()
		if err != nil {
			return Entry{}, nil, err
		}
	}
	e := Entry{
		Path:     "/" + strings.TrimSuffix(hdr.Name, "/"),
		Mode:     uint32(hdr.Mode),
		Size:     hdr.Size,
		LinkName: hdr.Linkname,
		Devmajor: hdr.Devmajor,
		Devminor: hdr.Devminor,
	}
	switch hdr.Typeflag {
	case tar.TypeDir:
		e.Kind = KindDir
	case tar.TypeSymlink:
		e.Kind = KindSymlink
	case tar.TypeFifo:
		e.Kind = KindFifo
	case tar.TypeChar:
		e.Kind = KindChar
	case tar.TypeBlock:
		e.Kind = KindBlock
	case tar.TypeReg:
		e.Kind = KindRegular
	default:
		return Entry{}, nil, fmt.Errorf("archive: unsupported tar entry type %q for %s", hdr.Typeflag, hdr.Name)
	}
	return e, ar.tr, nil
}

// Close releases the underlying zstd decoder.
func (ar *Reader) Close() error {
	ar.zr.Close()
	return nil
}

// ExtractTo streams every filesystem entry in the archive into destRoot,
// recreating directories, symlinks, and regular files, and returns the
// sha256 hex digest computed over each regular file's content (for
// cross-checking .FILELIST hashes recorded at pack time). FIFOs and
// device nodes are not created; they appear in the returned map with an
// empty hash. Decompression streams into destRoot directly; callers pass a
// scratch directory per spec.md §4.4 "Decompression streams into a
// temporary scratch directory."
func (ar *Reader) ExtractTo(destRoot string) (map[string]string, error) {
	hashes := make(map[string]string)
	for {
		e, body, err := ar.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(destRoot, e.Path)
		switch e.Kind {
		case KindDir:
			if err := os.MkdirAll(dest, os.FileMode(e.Mode)|0o700); err != nil {
				return nil, fmt.Errorf("archive: mkdir %s: %w", dest, err)
			}
		case KindSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, err
			}
			_ = os.Remove(dest)
			if err := os.Symlink(e.LinkName, dest); err != nil {
				return nil, fmt.Errorf("archive: symlink %s: %w", dest, err)
			}
		case KindFifo, KindChar, KindBlock:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, err
			}
			// device/fifo node creation requires mknod, which is
			// privileged; the node is not created here, only its
			// path is recorded with an empty hash.
			hashes[e.Path] = ""
		case KindRegular:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, err
			}
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(e.Mode))
			if err != nil {
				return nil, fmt.Errorf("archive: create %s: %w", dest, err)
			}
			h := sha256.New()
			if _, err := io.Copy(io.MultiWriter(f, h), body); err != nil {
				f.Close()
				return nil, fmt.Errorf("archive: write %s: %w", dest, err)
			}
			f.Close()
			hashes[e.Path] = hex.EncodeToString(h.Sum(nil))
		}
	}
	return hashes, nil
}
