// Package remote pushes completed study archives to the remote object store.
package remote

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is the three-valued outcome of an upload attempt.
type Result int

const (
	Uploaded Result = iota
	Failed
	Disabled
)

// String returns the outcome name used in logs.
func (r Result) String() string {
	switch r {
	case Uploaded:
		return "uploaded"
	case Failed:
		return "failed"
	default:
		return "disabled"
	}
}

// Uploader pushes one local file to the remote store. Implementations do not
// retry; the completion tracker re-runs failed studies on its next tick.
type Uploader interface {
	Upload(ctx context.Context, localPath, remotePath string) Result
}

// HTTPUploader posts archives to {base_url}/upload with bearer-token
// authentication. An empty base URL disables uploads entirely.
type HTTPUploader struct {
	baseURL string
	token   string
	client  *http.Client
	log     *logrus.Entry
}

// NewHTTPUploader builds an uploader for the configured endpoint.
func NewHTTPUploader(baseURL, token string, log *logrus.Entry) *HTTPUploader {
	return &HTTPUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Minute},
		log:     log,
	}
}

// Upload streams the file as a multipart body with the archive under the
// "archive" field and the destination under "remote_path". Any transport
// error or non-2xx response is a failure.
func (u *HTTPUploader) Upload(ctx context.Context, localPath, remotePath string) Result {
	if u.baseURL == "" {
		return Disabled
	}
	log := u.log.WithFields(logrus.Fields{
		"local_path":  localPath,
		"remote_path": remotePath,
	})

	f, err := os.Open(localPath)
	if err != nil {
		log.WithError(err).Error("failed to open archive for upload")
		return Failed
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadBody(mw, remotePath, filepath.Base(localPath), f)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload", pr)
	if err != nil {
		log.WithError(err).Error("failed to build upload request")
		return Failed
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("upload request failed")
		return Failed
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithField("status", resp.StatusCode).Warn("upload rejected")
		return Failed
	}
	log.Debug("archive uploaded")
	return Uploaded
}

func writeUploadBody(mw *multipart.Writer, remotePath, fileName string, r io.Reader) error {
	if err := mw.WriteField("remote_path", remotePath); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("archive", fileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}
