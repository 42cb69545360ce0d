package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// encodePKGINFO serializes Info into the plain `key = value` line format
// used by .PKGINFO, mirroring plan.toml's key style so the archive's
// metadata block reads like the plan it was built from.
func encodePKGINFO(info Info) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "name = %s\n", info.Name)
	fmt.Fprintf(&buf, "version = %s\n", info.Version)
	fmt.Fprintf(&buf, "release = %d\n", info.Release)
	fmt.Fprintf(&buf, "architecture = %s\n", info.Architecture)
	fmt.Fprintf(&buf, "description = %s\n", info.Description)
	fmt.Fprintf(&buf, "license = %s\n", info.License)
	if info.UpstreamURL != "" {
		fmt.Fprintf(&buf, "upstream_url = %s\n", info.UpstreamURL)
	}
	if info.Maintainer != "" {
		fmt.Fprintf(&buf, "maintainer = %s\n", info.Maintainer)
	}
	for _, d := range info.Dependencies {
		fmt.Fprintf(&buf, "depend.%s = %s%s%s\n", d.Kind, d.Name, d.Operator, d.Version)
	}
	for _, b := range info.BackupFiles {
		fmt.Fprintf(&buf, "backup = %s\n", b)
	}
	if info.PostInstall != "" {
		fmt.Fprintf(&buf, "has_post_install = true\n")
	}
	if info.PostUpgrade != "" {
		fmt.Fprintf(&buf, "has_post_upgrade = true\n")
	}
	if info.PreRemove != "" {
		fmt.Fprintf(&buf, "has_pre_remove = true\n")
	}
	return buf.Bytes()
}

// decodePKGINFO parses the .PKGINFO block back into Info. It is a
// permissive line scanner, not a TOML decoder: the format is a flat
// key = value list, one dependency or backup entry per line.
func decodePKGINFO(data []byte) (Info, error) {
	var info Info
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Info{}, fmt.Errorf("archive: malformed .PKGINFO line %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case key == "name":
			info.Name = value
		case key == "version":
			info.Version = value
		case key == "release":
			r, err := strconv.Atoi(value)
			if err != nil {
				return Info{}, fmt.Errorf("archive: invalid release %q: %w", value, err)
			}
			info.Release = r
		case key == "architecture":
			info.Architecture = value
		case key == "description":
			info.Description = value
		case key == "license":
			info.License = value
		case key == "upstream_url":
			info.UpstreamURL = value
		case key == "maintainer":
			info.Maintainer = value
		case key == "backup":
			info.BackupFiles = append(info.BackupFiles, value)
		case key == "has_post_install", key == "has_post_upgrade", key == "has_pre_remove":
			// presence markers only; actual script bodies live in .INSTALL
		case strings.HasPrefix(key, "depend."):
			kind := strings.TrimPrefix(key, "depend.")
			ref, err := parseDependRef(kind, value)
			if err != nil {
				return Info{}, err
			}
			info.Dependencies = append(info.Dependencies, ref)
		default:
			return Info{}, fmt.Errorf("archive: unknown .PKGINFO key %q", key)
		}
	}
	if err := sc.Err(); err != nil {
		return Info{}, fmt.Errorf("archive: scan .PKGINFO: %w", err)
	}
	return info, nil
}

func parseDependRef(kind, value string) (DependencyRef, error) {
	for _, op := range []string{">=", "<=", ">", "<", "="} {
		if idx := strings.Index(value, op); idx >= 0 {
			return DependencyRef{Kind: kind, Name: value[:idx], Operator: op, Version: value[idx+len(op):]}, nil
		}
	}
	return DependencyRef{Kind: kind, Name: value}, nil
}
