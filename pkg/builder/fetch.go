package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrightpm/wright/pkg/wrighterrors"
)

// DefaultFetcher implements Fetcher for http(s), local filesystem, and
// git+ URIs (spec.md §4.7 step 3's contract: one file per URI in
// cache/sources/ named <pkg-name>-<url-basename>, plus a disambiguation
// hash for git). Implemented on stdlib net/http and os/exec git rather
// than an ecosystem downloader: fetching is explicitly "external to core"
// per spec.md, so no domain-stack library claims this concern.
type DefaultFetcher struct {
	Client *http.Client
}

func NewDefaultFetcher() *DefaultFetcher {
	return &DefaultFetcher{Client: &http.Client{Timeout: 10 * time.Minute}}
}

func (f *DefaultFetcher) Fetch(uri, destDir, pkgName string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("builder: mkdir sources cache: %w", err)
	}

	switch {
	case strings.HasPrefix(uri, "git+"):
		return f.fetchGit(uri, destDir, pkgName)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return f.fetchHTTP(uri, destDir, pkgName)
	default:
		return f.fetchLocal(uri, destDir, pkgName)
	}
}

func (f *DefaultFetcher) fetchHTTP(uri, destDir, pkgName string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("builder: parse source uri %s: %w", uri, err)
	}
	base := filepath.Base(u.Path)
	dest := filepath.Join(destDir, pkgName+"-"+base)

	resp, err := f.Client.Get(uri)
	if err != nil {
		return "", wrighterrors.New(wrighterrors.KindNetwork, "fetch source", err).WithPackage(pkgName)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", wrighterrors.New(wrighterrors.KindNetwork, fmt.Sprintf("fetch source: http %d", resp.StatusCode), nil).WithPackage(pkgName)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("builder: create source file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", wrighterrors.New(wrighterrors.KindNetwork, "write fetched source", err).WithPackage(pkgName)
	}
	return dest, nil
}

func (f *DefaultFetcher) fetchLocal(uri, destDir, pkgName string) (string, error) {
	base := filepath.Base(uri)
	dest := filepath.Join(destDir, pkgName+"-"+base)
	in, err := os.Open(uri)
	if err != nil {
		return "", fmt.Errorf("builder: open local source %s: %w", uri, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *DefaultFetcher) fetchGit(uri, destDir, pkgName string) (string, error) {
	repoURL := strings.TrimPrefix(uri, "git+")
	h := sha256.Sum256([]byte(uri))
	disambig := hex.EncodeToString(h[:])[:12]
	dest := filepath.Join(destDir, pkgName+"-git-"+disambig)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	cmd := exec.Command("git", "clone", "--depth", "1", repoURL, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", wrighterrors.New(wrighterrors.KindNetwork, "git clone failed: "+string(out), err).WithPackage(pkgName)
	}
	return dest, nil
}

// verifySources computes SHA-256 over each non-SKIP source and compares
// against the plan's declared hash, re-fetching exactly once on mismatch
// (spec.md §4.7 step 4).
func verifySources(f Fetcher, job *Job, localPaths map[string]string) error {
	for _, src := range job.Plan.Sources {
		if src.SHA256 == "SKIP" {
			continue
		}
		path := localPaths[src.URI]
		if err := checkHash(path, src.SHA256); err == nil {
			continue
		}
		// one automatic re-fetch
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("builder: remove mismatched source: %w", err)
		}
		newPath, err := f.Fetch(src.URI, job.SourcesCache, job.Plan.Name)
		if err != nil {
			return err
		}
		localPaths[src.URI] = newPath
		if err := checkHash(newPath, src.SHA256); err != nil {
			return wrighterrors.New(wrighterrors.KindChecksum, "source checksum mismatch after re-fetch", err).
				WithPackage(job.Plan.Name)
		}
	}
	return nil
}

func checkHash(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("sha256 mismatch: got %s want %s", got, want)
	}
	return nil
}

// fetchAll fetches every declared source into job.SourcesCache, returning a
// map from source URI to local path. "SKIP" entries are fetched but not
// hash-checked by the caller.
func fetchAll(f Fetcher, job *Job) (map[string]string, error) {
	paths := make(map[string]string, len(job.Plan.Sources))
	for _, src := range job.Plan.Sources {
		p, err := f.Fetch(src.URI, job.SourcesCache, job.Plan.Name)
		if err != nil {
			return nil, err
		}
		paths[src.URI] = p
	}
	return paths, nil
}

var archiveExtensions = []string{
	".tar.gz", ".tar.xz", ".tar.bz2", ".tar.zst", ".tgz", ".txz", ".tbz2", ".tar", ".zip",
}

func isArchiveSource(path string) bool {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
