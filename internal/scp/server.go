// Package scp runs the DICOM storage SCP that feeds the ingestion pipeline.
// The provider machinery comes from go-netdicom; this package owns the
// listener so associations can be drained on shutdown.
package scp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yasushi-saito/go-netdicom"
	"github.com/yasushi-saito/go-netdicom/dimse"

	"github.com/mrsinham/pixieveil/internal/dicomutil"
	"github.com/mrsinham/pixieveil/internal/storage"
)

// DIMSE status codes returned by the C-STORE handler.
const (
	statusCannotUnderstand = 0xC000
	statusOutOfResources   = 0x0106
	statusSOPClassRefused  = 0x0122
	statusShutdownRefused  = 0xA700
)

// Config shapes the listener and the accepted storage classes.
type Config struct {
	IP      string
	Port    int
	AETitle string

	// SOPClasses lists the storage SOP class UIDs accepted for C-STORE.
	// Verification is always answered.
	SOPClasses []string
}

// Server accepts associations and hands every stored instance to the
// storage manager.
type Server struct {
	cfg      Config
	manager  *storage.Manager
	log      *logrus.Entry
	accepted map[string]struct{}

	refusing atomic.Bool

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
}

// New builds a server around the manager. Start must be called before the
// server answers anything.
func New(cfg Config, manager *storage.Manager, log *logrus.Entry) *Server {
	accepted := make(map[string]struct{}, len(cfg.SOPClasses))
	for _, uid := range cfg.SOPClasses {
		accepted[uid] = struct{}{}
	}
	return &Server{
		cfg:      cfg,
		manager:  manager,
		log:      log,
		accepted: accepted,
	}
}

// Start binds the listener and serves associations in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.IP, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("bind dicom listener: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"addr":     listener.Addr().String(),
		"ae_title": s.cfg.AETitle,
	}).Info("dicom server listening")

	params := netdicom.ServiceProviderParams{
		AETitle: s.cfg.AETitle,
		CEcho:   s.onCEcho,
		CStore:  s.onCStore,
	}
	go s.serve(listener, params)
	return nil
}

func (s *Server) serve(listener net.Listener, params netdicom.ServiceProviderParams) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.WithError(err).Warn("accept failed")
			}
			return
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			netdicom.RunProviderForConn(conn, params)
		}()
	}
}

// Addr reports the bound address. Useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown refuses new C-STOREs, closes the listener and waits for open
// associations to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.refusing.Store(true)

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("dicom server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("associations still open: %w", ctx.Err())
	}
}

func (s *Server) onCEcho() dimse.Status {
	s.log.Debug("c-echo answered")
	return dimse.Success
}

// onCStore receives one instance, frames it as a file stream and runs the
// pipeline. A panic anywhere below is translated into a DIMSE error so one
// bad dataset cannot take the receiver down.
func (s *Server) onCStore(transferSyntaxUID, sopClassUID, sopInstanceUID string, data []byte) (status dimse.Status) {
	id := uuid.NewString()
	log := s.log.WithField("reception_id", id)

	defer func() {
		if r := recover(); r != nil {
			log.Error(goerrors.Wrap(r, 2).ErrorStack())
			status = dimse.Status{Status: statusOutOfResources, ErrorComment: "internal error"}
		}
	}()

	if s.refusing.Load() {
		log.Debug("c-store refused, shutting down")
		return dimse.Status{Status: statusShutdownRefused, ErrorComment: "shutting down"}
	}
	if _, ok := s.accepted[sopClassUID]; !ok {
		log.WithField("sop_class_uid", sopClassUID).Debug("c-store refused, sop class not accepted")
		return dimse.Status{Status: statusSOPClassRefused, ErrorComment: "sop class not supported"}
	}

	stream, err := dicomutil.EncodeFileStream(transferSyntaxUID, sopClassUID, sopInstanceUID, data)
	if err != nil {
		log.WithError(err).Warn("c-store payload could not be framed")
		return dimse.Status{Status: statusCannotUnderstand, ErrorComment: "cannot process dataset"}
	}

	path, err := s.manager.SaveTempImage(stream, id)
	if err != nil {
		log.WithError(err).Error("failed to persist received image")
		return dimse.Status{Status: statusOutOfResources, ErrorComment: "out of resources"}
	}
	s.manager.ProcessImage(path, id)
	return dimse.Success
}
