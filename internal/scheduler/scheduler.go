// Package scheduler runs the daily budget alert and renewal reminder sweeps
// on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Deepanshu2050/subcription-manager/internal/budget"
	"github.com/Deepanshu2050/subcription-manager/internal/subscriptions"
)

// AlertSweeper evaluates every active budget for threshold alerts.
type AlertSweeper interface {
	SweepAlerts(ctx context.Context, now time.Time) (budget.SweepResult, error)
}

// ReminderSweeper sends renewal reminders for upcoming subscriptions.
type ReminderSweeper interface {
	SweepReminders(ctx context.Context, now time.Time) (subscriptions.SweepResult, error)
}

// Reconciler recomputes the running spend of active budgets.
type Reconciler interface {
	Reconcile(ctx context.Context) (budget.ReconcileResult, error)
}

// Options configures the schedules. An empty spec disables that job.
type Options struct {
	Location              *time.Location
	BudgetAlerts          string
	SubscriptionReminders string
	Reconcile             string
}

// Scheduler owns the cron runner and the context handed to running jobs.
type Scheduler struct {
	cron       *cron.Cron
	alerts     AlertSweeper
	reminders  ReminderSweeper
	reconciler Reconciler
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the jobs named in opts. Nothing runs until Start.
func New(opts Options, alerts AlertSweeper, reminders ReminderSweeper, reconciler Reconciler) (*Scheduler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cron.PrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		alerts:     alerts,
		reminders:  reminders,
		reconciler: reconciler,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"budget alerts", opts.BudgetAlerts, s.runAlerts},
		{"subscription reminders", opts.SubscriptionReminders, s.runReminders},
		{"budget reconcile", opts.Reconcile, s.runReconcile},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			cancel()
			return nil, fmt.Errorf("scheduling %s %q: %w", j.name, j.spec, err)
		}
		log.Printf("Scheduled %s at %q (%s)", j.name, j.spec, loc)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs to finish. If ctx ends
// first, running jobs are cancelled and Stop still waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
		return ctx.Err()
	}
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runAlerts() {
	start := s.now()
	log.Printf("budget alerts: sweep started")
	res, err := s.alerts.SweepAlerts(s.ctx, start)
	if err != nil {
		log.Printf("budget alerts: sweep failed: %v", err)
		return
	}
	log.Printf("budget alerts: checked %d budgets, sent %d alerts, %d failed in %s",
		res.Budgets, res.AlertsSent, res.Failed, s.now().Sub(start).Round(time.Millisecond))
}

func (s *Scheduler) runReminders() {
	start := s.now()
	log.Printf("subscription reminders: sweep started")
	res, err := s.reminders.SweepReminders(s.ctx, start)
	if err != nil {
		log.Printf("subscription reminders: sweep failed: %v", err)
		return
	}
	log.Printf("subscription reminders: checked %d subscriptions, sent %d reminders, %d failed in %s",
		res.Subscriptions, res.RemindersSent, res.Failed, s.now().Sub(start).Round(time.Millisecond))
}

func (s *Scheduler) runReconcile() {
	start := s.now()
	res, err := s.reconciler.Reconcile(s.ctx)
	if err != nil {
		log.Printf("budget reconcile: failed: %v", err)
		return
	}
	log.Printf("budget reconcile: checked %d budgets, adjusted %d, %d failed in %s",
		res.Budgets, res.Adjusted, res.Failed, s.now().Sub(start).Round(time.Millisecond))
}
