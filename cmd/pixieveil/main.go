package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/integrii/flaggy"
	"github.com/sirupsen/logrus"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard"
	"github.com/mrsinham/pixieveil/internal/anonymize"
	"github.com/mrsinham/pixieveil/internal/config"
	"github.com/mrsinham/pixieveil/internal/filter"
	"github.com/mrsinham/pixieveil/internal/remote"
	"github.com/mrsinham/pixieveil/internal/scp"
	"github.com/mrsinham/pixieveil/internal/storage"
	"github.com/mrsinham/pixieveil/internal/web"
)

// version is set at build time via -ldflags
var version = "dev"

var (
	configPath = "settings.yaml"
	debugFlag  = false
)

// drainTimeout bounds how long shutdown waits for open associations and
// the running sweep.
const drainTimeout = 30 * time.Second

func main() {
	flaggy.SetName("pixieveil")
	flaggy.SetDescription("Receives DICOM studies, anonymises them and ships the archives")
	flaggy.String(&configPath, "c", "config", "Path to the YAML settings file")
	flaggy.Bool(&debugFlag, "d", "debug", "Force debug logging")

	var fromConfig string
	wizardCmd := flaggy.NewSubcommand("wizard")
	wizardCmd.Description = "Interactively build a settings file"
	wizardCmd.String(&fromConfig, "f", "from", "Existing settings file to pre-fill the wizard")
	flaggy.AttachSubcommand(wizardCmd, 1)

	flaggy.SetVersion(version)
	flaggy.Parse()

	if wizardCmd.Used {
		if err := wizard.Run(fromConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg, debugFlag)
	log.WithField("config", configPath).Info("starting pixieveil")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("pixieveil stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Entry) error {
	profile, err := cfg.Profile()
	if err != nil {
		return err
	}
	anonymizer := anonymize.New(anonymize.NewRegistry(), profile, log.WithField("component", "anonymize"))
	seriesFilter := filter.New(cfg.SeriesFilter.ExcludeModalities, cfg.SeriesFilter.KeepOriginalSeries, log.WithField("component", "filter"))

	manager, err := storage.NewManager(cfg.Storage.BasePath, cfg.Storage.TempPath, seriesFilter, anonymizer, log.WithField("component", "storage"))
	if err != nil {
		return err
	}

	uploader := remote.NewHTTPUploader(cfg.Storage.RemoteStorage.BaseURL, cfg.Storage.RemoteStorage.AuthToken, log.WithField("component", "remote"))
	tracker := storage.NewTracker(manager, uploader, cfg.Study.Timeout(), cfg.Study.CheckInterval(), log.WithField("component", "tracker"))

	dicomServer := scp.New(scp.Config{
		IP:         cfg.DICOMServer.IP,
		Port:       cfg.DICOMServer.Port,
		AETitle:    cfg.DICOMServer.AETitle,
		SOPClasses: cfg.DICOMServer.AcceptedSOPClasses(),
	}, manager, log.WithField("component", "scp"))
	if err := dicomServer.Start(); err != nil {
		return err
	}

	webServer := web.New(cfg.HTTPServer.IP, cfg.HTTPServer.Port, manager, version, log.WithField("component", "web"))
	if err := webServer.Start(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		_ = dicomServer.Shutdown(shutdownCtx)
		return err
	}

	trackerCtx, stopTracker := context.WithCancel(context.Background())
	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		tracker.Run(trackerCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()
	log.Info("shutdown requested")

	// New stores are refused from here on and anything still in flight
	// stays in the temp directory. The layout itself is crash consistent,
	// files only ever move into place by rename.
	manager.BeginShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := dicomServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("dicom server did not drain cleanly")
	}

	stopTracker()
	select {
	case <-trackerDone:
	case <-shutdownCtx.Done():
		log.Warn("completion sweep still running at exit")
	}

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server did not stop cleanly")
	}
	log.Info("pixieveil stopped")
	return nil
}

// newLogger builds the root log entry every component derives from. The
// debug flag and the DEBUG environment variable both override the
// configured level.
func newLogger(cfg *config.Config, debug bool) *logrus.Entry {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug || os.Getenv("DEBUG") == "TRUE" {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Logging.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log.WithField("version", version)
}
