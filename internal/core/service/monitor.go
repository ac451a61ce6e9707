package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Monitor runs the background session upkeep: the validation tick, the idle
// check, and the cron-scheduled renewal and heartbeat jobs. It runs for the
// life of the process; every tick is a cheap no-op while logged out.
type Monitor struct {
	sessions *SessionService
	policy   Policy
	log      zerolog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(sessions *SessionService, policy Policy, log zerolog.Logger) *Monitor {
	return &Monitor{
		sessions: sessions,
		policy:   policy.withDefaults(),
		log:      log,
	}
}

// Start launches the tickers and cron jobs. Call Stop to shut them down.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	m.cron = cron.New()
	if _, err := m.cron.AddFunc(every(m.policy.RenewalInterval), func() {
		if err := m.sessions.Renew(ctx); err != nil {
			m.log.Warn().Err(err).Msg("session renewal failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule renewal: %w", err)
	}
	if _, err := m.cron.AddFunc(every(m.policy.HeartbeatInterval), func() {
		m.sessions.Heartbeat(ctx)
	}); err != nil {
		return fmt.Errorf("schedule heartbeat: %w", err)
	}
	m.cron.Start()

	go m.run(ctx)

	m.log.Info().
		Dur("validate_interval", m.policy.ValidateInterval).
		Dur("idle_check_interval", m.policy.IdleCheckInterval).
		Dur("renewal_interval", m.policy.RenewalInterval).
		Dur("heartbeat_interval", m.policy.HeartbeatInterval).
		Msg("session monitor started")
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	validate := time.NewTicker(m.policy.ValidateInterval)
	defer validate.Stop()
	idle := time.NewTicker(m.policy.IdleCheckInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-validate.C:
			if _, err := m.sessions.Validate(ctx); err != nil {
				m.log.Warn().Err(err).Msg("validation tick failed")
			}
		case <-idle.C:
			if m.sessions.expireIfIdle(ctx) {
				m.log.Info().Msg("session expired for inactivity")
			}
		}
	}
}

// Stop halts the tickers and waits for running cron jobs to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	if m.done != nil {
		<-m.done
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
