package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartLifecycleScheduler runs the two bulk transitions once per day at
// the start-of-day boundary, start before end. The date predicates make
// both operations idempotent, so a late or repeated run needs no
// compensation.
func (s *LifecycleService) StartLifecycleScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(func() {
			now := time.Now()

			started, err := s.StartPeriodChallenges(now)
			if err != nil {
				log.Printf("[Scheduler] start-period transition failed: %v", err)
			} else if started > 0 {
				log.Printf("[Scheduler] %d challenge(s) moved to Progress", started)
			}

			ended, err := s.EndPeriodChallenges(now)
			if err != nil {
				log.Printf("[Scheduler] end-period transition failed: %v", err)
			} else if ended > 0 {
				log.Printf("[Scheduler] %d challenge(s) moved to Done", ended)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
