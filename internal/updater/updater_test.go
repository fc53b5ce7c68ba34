package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskdeck-io/taskdeck/internal/buildinfo"
)

func setVersion(t *testing.T, v string) {
	t.Helper()
	old := buildinfo.Version
	buildinfo.Version = v
	t.Cleanup(func() { buildinfo.Version = old })
}

func releaseStub(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/taskdeck-io/taskdeck/releases/latest" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	c := NewClient()
	c.apiBase = srv.URL
	return c
}

func TestCheckReportsNewerRelease(t *testing.T) {
	setVersion(t, "1.0.0")
	c := releaseStub(t, http.StatusOK, `{
		"tag_name": "v1.2.0",
		"html_url": "https://example.com/v1.2.0",
		"assets": [{"name": "taskdeck-linux-amd64", "browser_download_url": "x", "size": 5}]
	}`)

	result, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Available {
		t.Fatal("newer release not reported as available")
	}
	if result.LatestVersion != "1.2.0" {
		t.Errorf("latest = %q, want 1.2.0", result.LatestVersion)
	}
	if _, ok := result.Asset("taskdeck-linux-amd64"); !ok {
		t.Error("asset lookup failed")
	}
	if _, ok := result.Asset("taskdeck-plan9-mips"); ok {
		t.Error("asset lookup matched a missing name")
	}
}

func TestCheckUpToDate(t *testing.T) {
	setVersion(t, "1.2.0")
	c := releaseStub(t, http.StatusOK, `{"tag_name": "v1.2.0"}`)

	result, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Available {
		t.Error("same version reported as an update")
	}
}

func TestCheckDevBuildTreatedAsOlder(t *testing.T) {
	setVersion(t, "dev")
	c := releaseStub(t, http.StatusOK, `{"tag_name": "v0.1.0"}`)

	result, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !result.Available {
		t.Error("dev build should always see an update")
	}
}

func TestCheckNoReleasesYet(t *testing.T) {
	setVersion(t, "1.0.0")
	c := releaseStub(t, http.StatusNotFound, `{"message": "Not Found"}`)

	result, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Available {
		t.Error("empty repository reported an update")
	}
}

func TestDownloadVerifiesSize(t *testing.T) {
	payload := []byte("#!/bin/sh\necho taskdeck\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	c := NewClient()

	asset := &Asset{Name: "taskdeck-linux-amd64", BrowserDownloadURL: srv.URL, Size: int64(len(payload))}
	path, err := c.Download(context.Background(), asset)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer os.Remove(path)

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(payload) {
		t.Error("downloaded content differs from served content")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode()&0100 == 0 {
		t.Error("downloaded binary is not executable")
	}

	truncated := &Asset{Name: "taskdeck-linux-amd64", BrowserDownloadURL: srv.URL, Size: int64(len(payload)) + 10}
	if _, err := c.Download(context.Background(), truncated); err == nil {
		t.Error("size mismatch not detected")
	}
}

func TestInstallSwapsBinary(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "taskdeck")
	next := filepath.Join(dir, "taskdeck.next")
	if err := os.WriteFile(dest, []byte("old"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(next, []byte("new"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := Install(dest, next); err != nil {
		t.Fatalf("Install: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("installed content = %q, want new", got)
	}
	if _, err := os.Stat(dest + ".bak"); !os.IsNotExist(err) {
		t.Error("backup left behind after a clean install")
	}
}
