// Package updater checks GitHub Releases for a newer taskdeck and swaps the
// installed binaries in place.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/taskdeck-io/taskdeck/internal/buildinfo"
)

const (
	defaultAPIBase = "https://api.github.com"
	releaseRepo    = "taskdeck-io/taskdeck"
)

// Client queries one GitHub repository's releases.
type Client struct {
	apiBase string
	repo    string
	http    *http.Client
}

// NewClient returns a client for the taskdeck release repository.
func NewClient() *Client {
	return &Client{
		apiBase: defaultAPIBase,
		repo:    releaseRepo,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Release is the subset of the GitHub release payload the updater reads.
type Release struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Check reports whether a release newer than the running build exists.
type Check struct {
	Available      bool
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
	Release        *Release
}

// Asset returns the release asset with the given name.
func (c *Check) Asset(name string) (*Asset, bool) {
	if c.Release == nil {
		return nil, false
	}
	for i := range c.Release.Assets {
		if c.Release.Assets[i].Name == name {
			return &c.Release.Assets[i], true
		}
	}
	return nil, false
}

// Check fetches the latest release and compares it to the running version.
// A current version that does not parse as semver (local "dev" builds) is
// treated as older than any release.
func (c *Client) Check(ctx context.Context) (*Check, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, c.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "taskdeck/"+buildinfo.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Repository has no releases yet.
		return &Check{CurrentVersion: buildinfo.Version}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release API returned %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	latestVersion := strings.TrimPrefix(release.TagName, "v")
	result := &Check{
		CurrentVersion: buildinfo.Version,
		LatestVersion:  latestVersion,
		ReleaseURL:     release.HTMLURL,
		Release:        &release,
	}

	latest, err := ParseSemver(latestVersion)
	if err != nil {
		return nil, fmt.Errorf("parse latest version %q: %w", latestVersion, err)
	}
	current, err := ParseSemver(buildinfo.Version)
	if err != nil {
		result.Available = true
		return result, nil
	}
	result.Available = current.LessThan(latest)
	return result, nil
}

// Download fetches an asset into a temp file, verifies the advertised size,
// marks it executable, and returns its path. The caller removes the file.
func (c *Client) Download(ctx context.Context, asset *Asset) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", "taskdeck/"+buildinfo.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s returned %d", asset.Name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "taskdeck-update-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", asset.Name, err)
	}
	if asset.Size > 0 && written != asset.Size {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s truncated: got %d bytes, want %d", asset.Name, written, asset.Size)
	}
	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	return tmp.Name(), nil
}

// CLIAssetName returns the release asset name for this platform's CLI binary.
func CLIAssetName() string {
	return assetName("taskdeck")
}

// DaemonAssetName returns the release asset name for this platform's daemon
// binary.
func DaemonAssetName() string {
	return assetName("taskdeckd")
}

func assetName(binary string) string {
	name := fmt.Sprintf("%s-%s-%s", binary, runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// Install replaces the binary at destPath with the one at newPath, keeping
// the old binary as a backup until the swap succeeds.
func Install(destPath, newPath string) error {
	destPath, err := filepath.EvalSymlinks(destPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", destPath, err)
	}

	backup := destPath + ".bak"
	os.Remove(backup)

	if err := os.Rename(destPath, backup); err != nil {
		return fmt.Errorf("back up old binary: %w", err)
	}
	if err := os.Rename(newPath, destPath); err != nil {
		_ = os.Rename(backup, destPath)
		return fmt.Errorf("install new binary: %w", err)
	}
	os.Remove(backup)
	return nil
}
