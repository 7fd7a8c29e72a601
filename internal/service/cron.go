package service

import (
	"context"
	"errors"
	"time"

	"dapp-core/pkg/errno"
	"dapp-core/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronService 周期性刷新余额 (对应页面的手动刷新)
type CronService struct {
	cron       *cron.Cron
	projection Refresher
	spec       string
}

func NewCronService(projection Refresher, spec string) *CronService {
	return &CronService{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		projection: projection,
		spec:       spec,
	}
}

// Start registers the refresh job. An empty spec disables it.
func (s *CronService) Start() error {
	if s.spec == "" {
		logger.Info("projection cron disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.RefreshProjection); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Cron Service started", zap.String("spec", s.spec))
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// RefreshProjection 未连接时静默跳过
func (s *CronService) RefreshProjection() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.projection.Refresh(ctx)
	switch {
	case err == nil:
		logger.Debug("projection refreshed by cron")
	case errors.Is(err, errno.ErrNotConnected), errors.Is(err, ErrDiscarded):
	default:
		logger.Warn("cron projection refresh failed", zap.Error(err))
	}
}
