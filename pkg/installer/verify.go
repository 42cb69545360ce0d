package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wrightpm/wright/pkg/pkgdb"
)

// Mismatch records one tracked file whose live contents no longer match
// the checksum recorded at install time.
type Mismatch struct {
	Path   string
	Kind   string // "modified", "missing", "type_changed"
	Wanted string
	Got    string
}

// Verify recomputes the checksum of every regular file pkg owns and
// compares it against the hash recorded in InsertPackage, surfacing the
// `wright verify` operation (spec.md §4.11).
func (in *Installer) Verify(ctx context.Context, name string) ([]Mismatch, error) {
	files, err := in.Store.FilesOf(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("installer: files of %s: %w", name, err)
	}

	var mismatches []Mismatch
	for _, f := range files {
		if f.Kind != pkgdb.FileRegular {
			continue
		}
		full := filepath.Join(in.Root, f.Path)
		if fi, lerr := os.Lstat(full); lerr == nil && !fi.Mode().IsRegular() {
			mismatches = append(mismatches, Mismatch{Path: f.Path, Kind: "type_changed", Wanted: f.Hash})
			continue
		}
		got, err := hashFile(full)
		if os.IsNotExist(err) {
			mismatches = append(mismatches, Mismatch{Path: f.Path, Kind: "missing", Wanted: f.Hash})
			continue
		}
		if err != nil {
			return mismatches, fmt.Errorf("installer: hash %s: %w", full, err)
		}
		if got != f.Hash {
			mismatches = append(mismatches, Mismatch{Path: f.Path, Kind: "modified", Wanted: f.Hash, Got: got})
		}
	}
	return mismatches, nil
}

func hashFile(path string) (string, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
