// Package scheduler runs the periodic housekeeping jobs of the bot.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const purgeTimeout = 4 * time.Minute

// Purger deletes closed tests older than a given age.
type Purger interface {
	PurgeClosed(ctx context.Context, age time.Duration) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	purger Purger
	age    time.Duration
}

// New registers the purge job on schedule. The job is skipped while a
// previous run is still going.
func New(schedule string, age time.Duration, purger Purger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		purger: purger,
		age:    age,
	}
	if _, err := s.cron.AddFunc(schedule, s.purge); err != nil {
		return nil, err
	}
	log.Printf("[PURGE] scheduled=%q age=%s", schedule, age)
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce purges immediately and returns the number of deleted tests.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	n, err := s.purger.PurgeClosed(ctx, s.age)
	if err != nil {
		log.Printf("[PURGE] error: %v", err)
		return 0
	}
	if n == 0 {
		log.Printf("[PURGE] nothing to delete (age=%s)", s.age)
	} else {
		log.Printf("[PURGE] deleted %d closed tests older than %s", n, s.age)
	}
	return n
}
