package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	netdicom "github.com/yasushi-saito/go-netdicom"
	"github.com/yasushi-saito/go-netdicom/sopclass"

	"github.com/mrsinham/pixieveil/internal/dicomutil"
	"github.com/mrsinham/pixieveil/internal/forge"
	"github.com/mrsinham/pixieveil/internal/storage"
)

const (
	aeTitle   = "PIXIEVEIL"
	authToken = "e2e-token"
)

// binaryPath holds the path to the compiled binary (set once in TestMain)
var binaryPath string

// receivedArchive is one upload the fake remote store accepted.
type receivedArchive struct {
	remotePath string
	data       []byte
}

// testContext holds state for a single scenario
type testContext struct {
	tmpDir    string
	dicomPort int
	httpPort  int

	cmd      *exec.Cmd
	output   bytes.Buffer
	exitCode int
	stopped  bool

	receiver *httptest.Server

	mu          sync.Mutex
	uploads     []receivedArchive
	sentStudies map[string]struct{}
	instances   map[string]int
}

// serviceConfig selects the settings file written for one scenario.
type serviceConfig struct {
	remote            bool
	excludeModality   string
	completionTimeout int
}

// buildBinary compiles the pixieveil binary once
func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "pixieveil-test-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	// Get the directory of this test file to find the project root
	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), "./cmd/pixieveil")
	cmd.Dir = projectRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}

	return tmpFile.Name(), nil
}

// TestMain compiles the binary once before running all tests
func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(binaryPath)

	code := m.Run()
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	// Setup: create temp directory and reset state before each scenario
	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "pixieveil-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		tc.dicomPort = 0
		tc.httpPort = 0
		tc.cmd = nil
		tc.output.Reset()
		tc.exitCode = 0
		tc.stopped = false
		tc.receiver = nil
		tc.uploads = nil
		tc.sentStudies = make(map[string]struct{})
		tc.instances = make(map[string]int)
		return ctx, nil
	})

	// Teardown: stop the service and cleanup after each scenario
	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.stopProcess()
		if tc.receiver != nil {
			tc.receiver.Close()
		}
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	// Step definitions
	sc.Step(`^pixieveil is running$`, tc.pixieveilIsRunning)
	sc.Step(`^pixieveil is running with a completion timeout of (\d+) seconds?$`, tc.pixieveilIsRunningWithCompletionTimeout)
	sc.Step(`^pixieveil is running with uploads disabled and a completion timeout of (\d+) seconds?$`, tc.pixieveilIsRunningWithoutUploads)
	sc.Step(`^pixieveil is running with modality "([^"]*)" excluded$`, tc.pixieveilIsRunningWithModalityExcluded)
	sc.Step(`^I store (\d+) images? of study "([^"]*)"$`, tc.iStoreImagesOfStudy)
	sc.Step(`^I store an MR image of study "([^"]*)"$`, tc.iStoreAnMRImageOfStudy)
	sc.Step(`^I wait until (\d+) stud(?:y|ies) (?:has|have) completed$`, tc.iWaitUntilStudiesHaveCompleted)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
	sc.Step(`^"([^"]*)" should not exist$`, tc.shouldNotExist)
	sc.Step(`^the upload receiver should have (\d+) archives?$`, tc.receiverShouldHaveArchives)
	sc.Step(`^the uploaded archive should contain (\d+) images?$`, tc.uploadedArchiveShouldContainImages)
	sc.Step(`^every stored image should be anonymised$`, tc.everyStoredImageShouldBeAnonymised)
	sc.Step(`^the stats should report (\d+) uploaded stud(?:y|ies)$`, tc.statsShouldReportUploadedStudies)
	sc.Step(`^the stats should report (\d+) filtered images?$`, tc.statsShouldReportFilteredImages)
	sc.Step(`^pixieveil shuts down cleanly$`, tc.pixieveilShutsDownCleanly)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
}

func (tc *testContext) pixieveilIsRunning() error {
	return tc.startService(serviceConfig{remote: true})
}

func (tc *testContext) pixieveilIsRunningWithCompletionTimeout(seconds int) error {
	return tc.startService(serviceConfig{remote: true, completionTimeout: seconds})
}

func (tc *testContext) pixieveilIsRunningWithoutUploads(seconds int) error {
	return tc.startService(serviceConfig{completionTimeout: seconds})
}

func (tc *testContext) pixieveilIsRunningWithModalityExcluded(modality string) error {
	return tc.startService(serviceConfig{remote: true, excludeModality: modality})
}

func (tc *testContext) startService(cfg serviceConfig) error {
	if binaryPath == "" {
		return fmt.Errorf("binary not built")
	}
	var err error
	if tc.dicomPort, err = freePort(); err != nil {
		return err
	}
	if tc.httpPort, err = freePort(); err != nil {
		return err
	}

	baseURL := ""
	if cfg.remote {
		tc.receiver = httptest.NewServer(http.HandlerFunc(tc.handleUpload))
		baseURL = tc.receiver.URL
	}
	exclude := ""
	if cfg.excludeModality != "" {
		exclude = fmt.Sprintf("%q", cfg.excludeModality)
	}
	timeout := 120
	if cfg.completionTimeout > 0 {
		timeout = cfg.completionTimeout
	}

	settings := fmt.Sprintf(`dicom_server:
  ip: 127.0.0.1
  port: %d
  ae_title: %s
storage:
  base_path: %s
  remote_storage:
    base_url: %q
    auth_token: %s
study:
  completion_timeout: %d
  completion_check_interval: 1
series_filter:
  exclude_modalities: [%s]
http_server:
  ip: 127.0.0.1
  port: %d
logging:
  level: debug
`, tc.dicomPort, aeTitle, filepath.Join(tc.tmpDir, "storage"), baseURL, authToken, timeout, exclude, tc.httpPort)

	cfgPath := filepath.Join(tc.tmpDir, "settings.yaml")
	if err := os.WriteFile(cfgPath, []byte(settings), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	cmd := exec.Command(binaryPath, "--config", cfgPath)
	cmd.Stdout = &tc.output
	cmd.Stderr = &tc.output
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	tc.cmd = cmd

	if err := tc.waitReady(); err != nil {
		tc.stopProcess()
		return fmt.Errorf("%w\nOutput:\n%s", err, tc.output.String())
	}
	return nil
}

// waitReady polls the stats endpoint. The DICOM listener binds before the
// HTTP server starts, so a live stats endpoint means both are up.
func (tc *testContext) waitReady() error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := tc.fetchStats(); err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("service did not become ready within 10s")
}

// stopProcess kills the service if a scenario left it running.
func (tc *testContext) stopProcess() {
	if tc.cmd == nil || tc.stopped {
		return
	}
	_ = tc.cmd.Process.Kill()
	_ = tc.cmd.Wait()
	tc.stopped = true
}

// handleUpload plays the remote store: it checks the bearer token, reads the
// multipart body and keeps the archive bytes for later assertions.
func (tc *testContext) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/upload" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+authToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	file, _, err := r.FormFile("archive")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	tc.mu.Lock()
	tc.uploads = append(tc.uploads, receivedArchive{remotePath: r.FormValue("remote_path"), data: data})
	tc.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (tc *testContext) iStoreImagesOfStudy(count int, studyUID string) error {
	for i := 0; i < count; i++ {
		if err := tc.storeImage("CT", studyUID); err != nil {
			return err
		}
	}
	return nil
}

func (tc *testContext) iStoreAnMRImageOfStudy(studyUID string) error {
	return tc.storeImage("MR", studyUID)
}

// storeImage forges one image and sends it over a C-STORE association.
func (tc *testContext) storeImage(modality, studyUID string) error {
	tc.mu.Lock()
	tc.instances[studyUID]++
	n := tc.instances[studyUID]
	tc.sentStudies[studyUID] = struct{}{}
	tc.mu.Unlock()

	img, err := forge.New(forge.Options{
		Modality:       modality,
		StudyUID:       studyUID,
		SeriesUID:      studyUID + ".1",
		SOPInstanceUID: fmt.Sprintf("%s.1.%d", studyUID, n),
		InstanceNumber: n,
		Rows:           16,
		Columns:        16,
		Seed:           uint64(n),
	})
	if err != nil {
		return fmt.Errorf("forge image: %w", err)
	}
	data, err := img.FileBytes()
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	transferSyntaxUID, err := netdicom.GetTransferSyntaxUIDInBytes(data)
	if err != nil {
		return err
	}
	params, err := netdicom.NewServiceUserParams(aeTitle, "E2ESCU", sopclass.StorageClasses, []string{transferSyntaxUID})
	if err != nil {
		return err
	}
	su := netdicom.NewServiceUser(params)
	defer su.Release()
	su.Connect(fmt.Sprintf("127.0.0.1:%d", tc.dicomPort))
	if err := su.CStoreRaw(data); err != nil {
		return fmt.Errorf("c-store: %w", err)
	}
	return nil
}

func (tc *testContext) iWaitUntilStudiesHaveCompleted(count int) error {
	var snap storage.Snapshot
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		s, err := tc.fetchStats()
		if err == nil {
			snap = s
			if snap.Studies.Completed >= uint64(count) {
				return nil
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %d completed studies, last seen: %+v", count, snap.Studies)
}

func (tc *testContext) shouldExist(path string) error {
	path = strings.ReplaceAll(path, "{tmpdir}", tc.tmpDir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

// shouldNotExist polls briefly: local cleanup runs right after the completed
// counter moves, so the files may still be on their way out.
func (tc *testContext) shouldNotExist(path string) error {
	path = strings.ReplaceAll(path, "{tmpdir}", tc.tmpDir)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("path still exists: %s", path)
}

func (tc *testContext) receiverShouldHaveArchives(count int) error {
	tc.mu.Lock()
	got := len(tc.uploads)
	tc.mu.Unlock()

	if got != count {
		return fmt.Errorf("expected %d uploaded archives, got %d", count, got)
	}
	return nil
}

func (tc *testContext) uploadedArchiveShouldContainImages(count int) error {
	tc.mu.Lock()
	var last *receivedArchive
	if len(tc.uploads) > 0 {
		last = &tc.uploads[len(tc.uploads)-1]
	}
	tc.mu.Unlock()

	if last == nil {
		return fmt.Errorf("no archive was uploaded")
	}
	zr, err := zip.NewReader(bytes.NewReader(last.data), int64(len(last.data)))
	if err != nil {
		return fmt.Errorf("read archive %s: %w", last.remotePath, err)
	}
	images := 0
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".dcm") {
			images++
		}
	}
	if images != count {
		return fmt.Errorf("archive %s holds %d images, expected %d", last.remotePath, images, count)
	}
	return nil
}

// everyStoredImageShouldBeAnonymised parses each placed file and checks that
// nothing of the original identity survived.
func (tc *testContext) everyStoredImageShouldBeAnonymised() error {
	storageDir := filepath.Join(tc.tmpDir, "storage")
	tempDir := filepath.Join(storageDir, "temp")

	tc.mu.Lock()
	sent := make(map[string]struct{}, len(tc.sentStudies))
	for uid := range tc.sentStudies {
		sent[uid] = struct{}{}
	}
	tc.mu.Unlock()

	checked := 0
	err := filepath.WalkDir(storageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == tempDir {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".dcm" {
			return nil
		}
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		studyUID, err := dicomutil.StringValue(&ds, tag.StudyInstanceUID)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, leaked := sent[studyUID]; leaked {
			return fmt.Errorf("%s still carries the original study UID %s", path, studyUID)
		}
		if name, err := dicomutil.StringValue(&ds, tag.PatientName); err != nil || name != "" {
			return fmt.Errorf("%s still carries a patient name %q", path, name)
		}
		if burned, err := dicomutil.StringValue(&ds, tag.BurnedInAnnotation); err != nil || burned != "NO" {
			return fmt.Errorf("%s: BurnedInAnnotation = %q, want NO", path, burned)
		}
		checked++
		return nil
	})
	if err != nil {
		return err
	}
	if checked == 0 {
		return fmt.Errorf("no stored images found under %s", storageDir)
	}
	return nil
}

func (tc *testContext) statsShouldReportUploadedStudies(count int) error {
	return tc.waitStats(func(s storage.Snapshot) bool {
		return s.RemoteStorage.Studies == uint64(count)
	}, fmt.Sprintf("%d uploaded studies", count))
}

func (tc *testContext) statsShouldReportFilteredImages(count int) error {
	return tc.waitStats(func(s storage.Snapshot) bool {
		return s.Filter.Dropped == uint64(count)
	}, fmt.Sprintf("%d filtered images", count))
}

func (tc *testContext) pixieveilShutsDownCleanly() error {
	if tc.cmd == nil || tc.cmd.Process == nil {
		return fmt.Errorf("service is not running")
	}
	if err := tc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal service: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- tc.cmd.Wait() }()
	select {
	case err := <-done:
		tc.stopped = true
		if exitErr, ok := err.(*exec.ExitError); ok {
			tc.exitCode = exitErr.ExitCode()
		} else if err != nil {
			return fmt.Errorf("wait for service: %w", err)
		} else {
			tc.exitCode = 0
		}
	case <-time.After(15 * time.Second):
		_ = tc.cmd.Process.Kill()
		<-done
		tc.stopped = true
		return fmt.Errorf("service did not stop within 15s\nOutput:\n%s", tc.output.String())
	}

	if tc.exitCode != 0 {
		return fmt.Errorf("expected exit code 0, got %d\nOutput:\n%s", tc.exitCode, tc.output.String())
	}
	return nil
}

// theOutputShouldContain reads the captured logs. Only valid once the
// service has stopped.
func (tc *testContext) theOutputShouldContain(expected string) error {
	if !tc.stopped {
		return fmt.Errorf("service is still running, output not captured yet")
	}
	if !strings.Contains(tc.output.String(), expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output.String())
	}
	return nil
}

func (tc *testContext) fetchStats() (storage.Snapshot, error) {
	var snap storage.Snapshot
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/stats", tc.httpPort))
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("stats returned %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&snap)
	return snap, err
}

// waitStats polls the stats endpoint until ok accepts a snapshot.
func (tc *testContext) waitStats(ok func(storage.Snapshot) bool, want string) error {
	var snap storage.Snapshot
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err = tc.fetchStats()
		if err == nil && ok(snap) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("stats unavailable: %w", err)
	}
	return fmt.Errorf("stats never reported %s: %+v", want, snap)
}

// freePort reserves an ephemeral port and releases it for the service.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port, nil
}
