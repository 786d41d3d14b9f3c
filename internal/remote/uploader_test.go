package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *logrus.Entry {
	logger, _ := logrustest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func writeArchive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "0001.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUploadDisabledWithoutBaseURL(t *testing.T) {
	u := NewHTTPUploader("", "token", testEntry())
	got := u.Upload(context.Background(), "/nonexistent/0001.zip", "0001.zip")
	assert.Equal(t, Disabled, got)
}

func TestUploadPostsMultipartArchive(t *testing.T) {
	var (
		gotPath       string
		gotAuth       string
		gotRemotePath string
		gotArchive    []byte
		gotFileName   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotRemotePath = r.FormValue("remote_path")

		f, header, err := r.FormFile("archive")
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		gotFileName = header.Filename
		gotArchive, err = io.ReadAll(f)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	local := writeArchive(t, "zip bytes")
	u := NewHTTPUploader(srv.URL+"/", "sekret", testEntry())
	got := u.Upload(context.Background(), local, "0001.zip")

	assert.Equal(t, Uploaded, got)
	assert.Equal(t, "/upload", gotPath)
	assert.Equal(t, "Bearer sekret", gotAuth)
	assert.Equal(t, "0001.zip", gotRemotePath)
	assert.Equal(t, "0001.zip", gotFileName)
	assert.Equal(t, "zip bytes", string(gotArchive))
}

func TestUploadOmitsAuthorizationWithoutToken(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "", testEntry())
	got := u.Upload(context.Background(), writeArchive(t, "zip"), "0001.zip")

	assert.Equal(t, Uploaded, got)
	assert.False(t, sawAuth, "no Authorization header without a token")
}

func TestUploadFailsOnRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusInsufficientStorage)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "token", testEntry())
	got := u.Upload(context.Background(), writeArchive(t, "zip"), "0001.zip")
	assert.Equal(t, Failed, got)
}

func TestUploadFailsOnMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be contacted when the archive is unreadable")
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "token", testEntry())
	got := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), "0001.zip")
	assert.Equal(t, Failed, got)
}

func TestUploadFailsOnUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	u := NewHTTPUploader(srv.URL, "token", testEntry())
	got := u.Upload(context.Background(), writeArchive(t, "zip"), "0001.zip")
	assert.Equal(t, Failed, got)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "uploaded", Uploaded.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "disabled", Disabled.String())
}
