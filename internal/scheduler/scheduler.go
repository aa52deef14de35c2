// Package scheduler runs the daily maintenance sweep: monthly usage resets
// for subscriptions whose reset date has passed, commission period rollover,
// and expiry of referral codes that never converted.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"postpilot/internal/service"
)

const sweepBatchSize = 500

type Scheduler struct {
	cron        *cron.Cron
	subs        *service.SubscriptionService
	commissions *service.CommissionService
	referrals   *service.ReferralService
}

func New(subs *service.SubscriptionService, commissions *service.CommissionService, referrals *service.ReferralService) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		subs:        subs,
		commissions: commissions,
		referrals:   referrals,
	}
}

// Start registers the daily sweep and launches the cron loop. dailySpec is a
// standard five-field cron expression.
func (s *Scheduler) Start(dailySpec string) error {
	if _, err := s.cron.AddFunc(dailySpec, s.runDailySweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("spec", dailySpec).Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runDailySweep is a safety net behind the lazy resets done on read; each
// step is independently idempotent, so a partial failure just retries
// tomorrow.
func (s *Scheduler) runDailySweep() {
	if n, err := s.subs.ResetDueSubscriptions(sweepBatchSize); err != nil {
		log.Error().Err(err).Msg("usage reset sweep failed")
	} else if n > 0 {
		log.Info().Int("subscriptions", n).Msg("monthly usage reset")
	}

	if n, err := s.commissions.RolloverDuePeriods(sweepBatchSize); err != nil {
		log.Error().Err(err).Msg("commission rollover failed")
	} else if n > 0 {
		log.Info().Int("periods", n).Msg("commission periods rolled over")
	}

	if n, err := s.referrals.ExpireStalePending(); err != nil {
		log.Error().Err(err).Msg("referral expiry sweep failed")
	} else if n > 0 {
		log.Info().Int64("referrals", n).Msg("stale pending referrals expired")
	}
}
