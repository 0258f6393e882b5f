package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amara-obi/invoicetrack/internal/common"
	"github.com/amara-obi/invoicetrack/internal/dispatch"
	"github.com/amara-obi/invoicetrack/internal/export"
	"github.com/amara-obi/invoicetrack/internal/repository"
	"github.com/amara-obi/invoicetrack/internal/storage"
)

// Server bundles the HTTP surface over the invoice pipeline.
type Server struct {
	logger   *zap.Logger
	cfg      common.ServerConfig
	docs     repository.DocumentRepository
	queue    repository.QueueRepository
	results  repository.ResultRepository
	store    storage.Storage
	dispatch *dispatch.Service
	exporter *export.Service
	db       *repository.DB

	httpSrv *http.Server
}

func New(
	logger *zap.Logger,
	cfg common.ServerConfig,
	db *repository.DB,
	docs repository.DocumentRepository,
	queue repository.QueueRepository,
	results repository.ResultRepository,
	store storage.Storage,
	dispatcher *dispatch.Service,
	exporter *export.Service,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:   logger,
		cfg:      cfg,
		db:       db,
		docs:     docs,
		queue:    queue,
		results:  results,
		store:    store,
		dispatch: dispatcher,
		exporter: exporter,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 25
	}
	return mb << 20
}
