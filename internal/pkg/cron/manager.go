package cron

import (
	"Realty/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine             *cron.Cron
	unreadReconcile    string
	unreadReconcileJob *job.UnreadReconcileJob
}

func NewCronManager(spec string, unreadReconcileJob *job.UnreadReconcileJob) *Manager {
	return &Manager{
		engine:             cron.New(cron.WithSeconds()),
		unreadReconcile:    spec,
		unreadReconcileJob: unreadReconcileJob,
	}
}

// RegisterJobs 注册定时任务，spec 为空表示关闭
func (s *Manager) RegisterJobs() error {
	if s.unreadReconcile == "" {
		return nil
	}
	if _, err := s.engine.AddJob(s.unreadReconcile, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.unreadReconcileJob)); err != nil {
		return err
	}
	return nil
}

// Run 注册任务并启动引擎，没有任务时不启动
func (s *Manager) Run() error {
	if err := s.RegisterJobs(); err != nil {
		return err
	}
	if len(s.engine.Entries()) == 0 {
		log.Info("Cron 未配置任务，跳过启动")
		return nil
	}
	s.Start()
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动", "jobs", len(s.engine.Entries()))
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}
