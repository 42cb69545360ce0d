// Package archive packs and unpacks Wright's binary package format
// (spec.md §4.4): a zstd-compressed tar stream named
// {name}-{version}-{release}-{arch}.wright.tar.zst, carrying a
// `.PKGINFO` metadata block, a `.FILELIST` manifest, an optional
// `.INSTALL` script bundle, and the packaged tree rooted at `/`.
//
// Grounded on the teacher's absence of an archive package (OpenFroyo ships
// no binary-package codec) and on holocm-holo-build's common/tar.go
// pattern (walk a filesystem tree, emit one tar.Header per entry,
// normalize timestamps for reproducibility) generalized from in-memory
// FSDirectory nodes to real filesystem entries, and from gzip/xz to zstd
// via github.com/klauspost/compress/zstd (grounded: present in the
// example pack's dependency graph through jesseduffield-lazydocker).
package archive

import (
	"strconv"
	"time"
)

// ReproducibleTime is the deterministic modification time stamped on every
// archive entry so that archive_pack is reproducible across builds
// (spec.md §4.4 "deterministic value for reproducibility").
var ReproducibleTime = time.Unix(0, 0).UTC()

// EntryKind is the closed set of filesystem entry kinds the codec
// preserves (spec.md §3 "kind∈{regular, dir, symlink, fifo, char, block}").
type EntryKind string

const (
	KindRegular EntryKind = "regular"
	KindDir     EntryKind = "dir"
	KindSymlink EntryKind = "symlink"
	KindFifo    EntryKind = "fifo"
	KindChar    EntryKind = "char"
	KindBlock   EntryKind = "block"
)

// Entry is one packaged filesystem object, as recorded in .FILELIST and
// replayed on unpack.
type Entry struct {
	Path     string // absolute path rooted at "/"
	Kind     EntryKind
	Mode     uint32
	Size     int64
	Hash     string // sha256 hex digest; empty for non-regular entries
	LinkName string // symlink target
	Devmajor int64
	Devminor int64
	IsConfig bool
}

// DependencyRef is one dependency edge recorded in .PKGINFO.
type DependencyRef struct {
	Kind     string
	Name     string
	Operator string
	Version  string
}

// Info is the .PKGINFO metadata block (spec.md §4.4).
type Info struct {
	Name         string
	Version      string
	Release      int
	Architecture string
	Description  string
	License      string
	UpstreamURL  string
	Maintainer   string
	Dependencies []DependencyRef
	BackupFiles  []string
	PostInstall  string
	PostUpgrade  string
	PreRemove    string
}

// Filename returns the canonical archive filename (spec.md §4.4 and
// §"Archive format").
func Filename(name, version string, release int, arch string) string {
	return name + "-" + version + "-" + strconv.Itoa(release) + "-" + arch + ".wright.tar.zst"
}
