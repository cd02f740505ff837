package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a single listing page plus the images it references.
func fakeAPI(t *testing.T, listingStatus int, images map[string]string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/nfts/owners_v2" {
			if listingStatus != http.StatusOK {
				http.Error(w, "listing unavailable", listingStatus)
				return
			}
			fmt.Fprintf(w, `{"next_cursor": null, "nfts": [
				{"token_id": "1", "name": "Alpha", "image_url": "%[1]s/img/alpha.png"},
				{"token_id": "2", "name": "Beta", "image_url": "%[1]s/img/beta.png"},
				{"token_id": "3", "name": "Vector", "image_url": "data:image/svg+xml;base64,PHN2Zz4="}
			]}`, server.URL)
			return
		}
		body, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

type env struct {
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func setupEnv(t *testing.T, baseURL string) *env {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("NFTFOLDER_API_KEY", "test-key")
	t.Setenv("NFTFOLDER_BASE_URL", baseURL)
	t.Setenv("NFTFOLDER_DB", filepath.Join(root, "runs.db"))
	return &env{dir: filepath.Join(root, "out")}
}

func (e *env) run(args ...string) int {
	e.stdout.Reset()
	e.stderr.Reset()
	return run(context.Background(), args, &e.stdout, &e.stderr)
}

func TestRun_DownloadsAndSkipsOnRerun(t *testing.T) {
	api := fakeAPI(t, http.StatusOK, map[string]string{
		"/img/alpha.png": "alpha-bytes",
		"/img/beta.png":  "beta-bytes",
	})
	e := setupEnv(t, api.URL)

	code := e.run("0xowner", "--dir", e.dir, "-q")
	require.Equal(t, exitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "3 discovered, 3 completed (3 saved, 0 skipped), 0 failed")

	alpha, err := os.ReadFile(filepath.Join(e.dir, "Alpha.png"))
	require.NoError(t, err)
	assert.Equal(t, "alpha-bytes", string(alpha))
	svg, err := os.ReadFile(filepath.Join(e.dir, "Vector.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg>", string(svg))

	code = e.run("0xowner", "--dir", e.dir, "-q")
	require.Equal(t, exitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "(0 saved, 3 skipped)")

	code = e.run("history")
	require.Equal(t, exitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "succeeded")
	assert.Contains(t, e.stdout.String(), "0xowner")
}

func TestRun_PartialFailure(t *testing.T) {
	api := fakeAPI(t, http.StatusOK, map[string]string{
		"/img/alpha.png": "alpha-bytes",
	})
	e := setupEnv(t, api.URL)

	code := e.run("0xowner", "--dir", e.dir, "-q")
	assert.Equal(t, exitPartial, code)
	assert.Contains(t, e.stdout.String(), "1 failed")
	assert.Contains(t, e.stdout.String(), "Beta:")
	assert.Contains(t, e.stderr.String(), "1 of 3 records failed")
	assert.NoFileExists(t, filepath.Join(e.dir, "Beta.png"))

	code = e.run("failures")
	require.Equal(t, exitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "(partial): 1 failed")
	assert.Contains(t, e.stdout.String(), "Beta")
}

func TestRun_PageError(t *testing.T) {
	api := fakeAPI(t, http.StatusTooManyRequests, nil)
	e := setupEnv(t, api.URL)

	code := e.run("0xowner", "--dir", e.dir, "-q")
	assert.Equal(t, exitAborted, code)
	assert.Contains(t, e.stderr.String(), "status 429")
	assert.Contains(t, e.stdout.String(), "0 discovered")
}

func TestRun_MissingAPIKey(t *testing.T) {
	e := setupEnv(t, "http://127.0.0.1:1")
	t.Setenv("NFTFOLDER_API_KEY", "")
	t.Setenv("SIMPLEHASH_APIKEY", "")

	code := e.run("0xowner", "--dir", e.dir)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, e.stderr.String(), "api key is required")
}

func TestRun_InvalidConcurrency(t *testing.T) {
	e := setupEnv(t, "http://127.0.0.1:1")

	code := e.run("0xowner", "--dir", e.dir, "-n", "0")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, e.stderr.String(), "concurrency")
}

func TestRun_DestinationIsFile(t *testing.T) {
	e := setupEnv(t, "http://127.0.0.1:1")
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	code := e.run("0xowner", "--dir", file)
	assert.Equal(t, exitSetup, code)
	assert.Contains(t, e.stderr.String(), "not a directory")
}

func TestRun_Arguments(t *testing.T) {
	e := setupEnv(t, "http://127.0.0.1:1")

	assert.Equal(t, exitUsage, e.run())
	assert.Equal(t, exitUsage, e.run("a", "b"))
	assert.Equal(t, exitUsage, e.run("failures", "no-such-run"))
}

func TestRun_FailuresWithoutRuns(t *testing.T) {
	e := setupEnv(t, "http://127.0.0.1:1")

	code := e.run("failures")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, e.stderr.String(), "run not found")
}

func TestRun_HistoryEmpty(t *testing.T) {
	e := setupEnv(t, "http://127.0.0.1:1")

	code := e.run("history")
	require.Equal(t, exitOK, code, e.stderr.String())
	assert.Contains(t, e.stdout.String(), "no runs recorded")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitPartial, exitCode(withCode(exitPartial, errors.New("some failed"))))
	assert.Equal(t, exitAborted, exitCode(fmt.Errorf("wrapped: %w", withCode(exitAborted, errors.New("page")))))
	assert.Equal(t, exitUsage, exitCode(errors.New("unknown flag")))
}
