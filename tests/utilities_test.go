package tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/yasushi-saito/go-netdicom"
	"github.com/yasushi-saito/go-netdicom/sopclass"

	"github.com/mrsinham/pixieveil/internal/anonymize"
	"github.com/mrsinham/pixieveil/internal/dicomutil"
	"github.com/mrsinham/pixieveil/internal/filter"
	"github.com/mrsinham/pixieveil/internal/forge"
	"github.com/mrsinham/pixieveil/internal/remote"
	"github.com/mrsinham/pixieveil/internal/scp"
	"github.com/mrsinham/pixieveil/internal/storage"
)

// UIDs used by the scenario tests. Arbitrary but stable, so anonymised
// outputs can be compared against them.
const (
	studyA  = "1.2.840.99999.10.1"
	studyB  = "1.2.840.99999.10.2"
	seriesA = "1.2.840.99999.10.1.1"
	seriesB = "1.2.840.99999.10.2.1"
)

const aeTitle = "PIXIEVEIL"

// quiet is the completion timeout the harness runs with unless a test
// overrides it.
const quiet = 50 * time.Millisecond

type harnessOptions struct {
	timeout  time.Duration
	uploader remote.Uploader
	exclude  []string
	// sopClasses narrows what the server accepts; all four forge
	// modalities are accepted when empty.
	sopClasses []string
	// prepare runs against the studies root before the manager first
	// scans it.
	prepare func(base string) error
}

// harness wires the full receive-process-complete pipeline behind a real
// DICOM listener on a loopback port.
type harness struct {
	t       *testing.T
	base    string
	temp    string
	manager *storage.Manager
	tracker *storage.Tracker
	server  *scp.Server
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	if opts.timeout == 0 {
		opts.timeout = quiet
	}
	logger, _ := logrustest.NewNullLogger()
	log := logger.WithField("component", "test")
	if opts.uploader == nil {
		opts.uploader = remote.NewHTTPUploader("", "", log)
	}

	root := t.TempDir()
	base := filepath.Join(root, "studies")
	temp := filepath.Join(root, "temp")
	if opts.prepare != nil {
		if err := os.MkdirAll(base, 0o755); err != nil {
			t.Fatalf("create studies root: %v", err)
		}
		if err := opts.prepare(base); err != nil {
			t.Fatalf("prepare studies root: %v", err)
		}
	}

	anonymizer := anonymize.New(anonymize.NewRegistry(), anonymize.DefaultProfile(), log)
	seriesFilter := filter.New(opts.exclude, false, log)
	manager, err := storage.NewManager(base, temp, seriesFilter, anonymizer, log)
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	tracker := storage.NewTracker(manager, opts.uploader, opts.timeout, time.Minute, log)

	if len(opts.sopClasses) == 0 {
		opts.sopClasses = []string{
			dicomutil.CTImageStorage,
			dicomutil.MRImageStorage,
			dicomutil.UltrasoundImageStorage,
			dicomutil.SecondaryCaptureStorage,
		}
	}
	server := scp.New(scp.Config{
		IP:         "127.0.0.1",
		Port:       0,
		AETitle:    aeTitle,
		SOPClasses: opts.sopClasses,
	}, manager, log)
	if err := server.Start(); err != nil {
		t.Fatalf("start dicom server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	return &harness{t: t, base: base, temp: temp, manager: manager, tracker: tracker, server: server}
}

// store ships one image over a fresh association and returns the C-STORE
// outcome. The response is synchronous, so the image has been fully
// processed when store returns.
func (h *harness) store(img *forge.Image) error {
	h.t.Helper()

	data, err := img.FileBytes()
	if err != nil {
		h.t.Fatalf("encode image: %v", err)
	}
	transferSyntaxUID, err := netdicom.GetTransferSyntaxUIDInBytes(data)
	if err != nil {
		h.t.Fatalf("read transfer syntax: %v", err)
	}

	params, err := netdicom.NewServiceUserParams(
		aeTitle, "TESTSCU", sopclass.StorageClasses,
		[]string{transferSyntaxUID})
	if err != nil {
		h.t.Fatalf("service user params: %v", err)
	}
	su := netdicom.NewServiceUser(params)
	defer su.Release()
	su.Connect(h.server.Addr())
	return su.CStoreRaw(data)
}

// send is store for images that must be accepted.
func (h *harness) send(img *forge.Image) {
	h.t.Helper()
	if err := h.store(img); err != nil {
		h.t.Fatalf("c-store failed: %v", err)
	}
}

// waitQuiet sleeps past the completion timeout so the next sweep sees every
// study as strictly quiescent.
func (h *harness) waitQuiet() {
	time.Sleep(quiet + 25*time.Millisecond)
}

func (h *harness) sweep() {
	h.tracker.Sweep(context.Background())
}

func (h *harness) imagePath(study, series, image int) string {
	return filepath.Join(h.base,
		fmt.Sprintf("%04d", study), fmt.Sprintf("%04d", series), fmt.Sprintf("%04d.dcm", image))
}

func ctImage(t *testing.T, studyUID, seriesUID string, instance int) *forge.Image {
	t.Helper()
	img, err := forge.New(forge.Options{
		Modality:       "CT",
		StudyUID:       studyUID,
		SeriesUID:      seriesUID,
		SOPInstanceUID: fmt.Sprintf("%s.%d", seriesUID, instance),
		InstanceNumber: instance,
		Rows:           16,
		Columns:        16,
		Seed:           uint64(instance),
	})
	if err != nil {
		t.Fatalf("forge image: %v", err)
	}
	return img
}

func forgeMR(studyUID, seriesUID string) (*forge.Image, error) {
	return forge.New(forge.Options{
		Modality:       "MR",
		StudyUID:       studyUID,
		SeriesUID:      seriesUID,
		SOPInstanceUID: seriesUID + ".100",
		Rows:           16,
		Columns:        16,
		Seed:           100,
	})
}

func readTag(t *testing.T, path string, tg tag.Tag) string {
	t.Helper()
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	value, err := dicomutil.StringValue(&ds, tg)
	if err != nil {
		t.Fatalf("read tag %v from %s: %v", tg, path, err)
	}
	return value
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	return len(entries)
}
