// Package schedule emits TickEvents on cron schedules and fixed intervals.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mewbot/internal/core"
	"mewbot/internal/events"
)

// TickEvent is emitted each time a job fires.
type TickEvent struct {
	events.TickEvent
}

var (
	standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	secondsParser  = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSpec parses a 5-field cron expression, falling back to the 6-field
// form with seconds. Descriptors such as @hourly and @every 5m are accepted.
func ParseSpec(spec string) (cron.Schedule, error) {
	sched, err := standardParser.Parse(spec)
	if err == nil {
		return sched, nil
	}
	sched, err2 := secondsParser.Parse(spec)
	if err2 != nil {
		return nil, fmt.Errorf("could not parse cron expression %q: %w", spec, err)
	}
	return sched, nil
}

// Job is one named schedule. Exactly one of Cron and Interval is set.
type Job struct {
	Name     string        `yaml:"name"`
	Cron     string        `yaml:"cron"`
	Interval time.Duration `yaml:"interval"`
	// Immediate makes an interval job fire once when it starts.
	Immediate bool `yaml:"immediate"`
}

// Config is the schedule IOConfig. It has no Outputs.
type Config struct {
	Jobs     []Job  `yaml:"jobs"`
	Timezone string `yaml:"timezone"`

	once   sync.Once
	inputs []core.Input
}

// Validate checks every job.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Jobs) == 0 {
		errs = append(errs, errors.New("at least one job is required"))
	}
	seen := map[string]bool{}
	for i, j := range c.Jobs {
		if j.Name == "" {
			errs = append(errs, fmt.Errorf("job %d: name is required", i))
		} else if seen[j.Name] {
			errs = append(errs, fmt.Errorf("job %d: duplicate name %q", i, j.Name))
		}
		seen[j.Name] = true

		switch {
		case j.Cron != "" && j.Interval != 0:
			errs = append(errs, fmt.Errorf("job %q: cron and interval are mutually exclusive", j.Name))
		case j.Cron != "":
			if _, err := ParseSpec(j.Cron); err != nil {
				errs = append(errs, fmt.Errorf("job %q: %w", j.Name, err))
			}
		case j.Interval <= 0:
			errs = append(errs, fmt.Errorf("job %q: cron or a positive interval is required", j.Name))
		}
	}
	if _, err := c.location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Inputs returns one Input per job. Jobs that do not validate are skipped
// with an error log.
func (c *Config) Inputs() []core.Input {
	c.once.Do(func() {
		loc, err := c.location()
		if err != nil {
			slog.Error("schedule: falling back to local time", "error", err)
			loc = time.Local
		}
		for _, j := range c.Jobs {
			if j.Cron != "" {
				sched, err := ParseSpec(j.Cron)
				if err != nil {
					slog.Error("schedule: skipping job", "job", j.Name, "error", err)
					continue
				}
				c.inputs = append(c.inputs, &CronInput{name: j.Name, schedule: sched, location: loc})
				continue
			}
			if j.Interval > 0 {
				c.inputs = append(c.inputs, &IntervalInput{name: j.Name, interval: j.Interval, immediate: j.Immediate})
			}
		}
	})
	return c.inputs
}

func (c *Config) Outputs() []core.Output { return nil }

func producesTicks() core.TypeSet {
	return core.Types(core.TypeOf[TickEvent]())
}

func tick(name string, at time.Time) TickEvent {
	return TickEvent{TickEvent: events.TickEvent{Name: name, At: at}}
}

// CronInput fires on a cron schedule.
type CronInput struct {
	core.InputBinding
	name     string
	schedule cron.Schedule
	location *time.Location
}

// NewCronInput builds a CronInput from a cron expression.
func NewCronInput(name, spec string) (*CronInput, error) {
	sched, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	return &CronInput{name: name, schedule: sched, location: time.Local}, nil
}

func (i *CronInput) Name() string { return "schedule:" + i.name }

func (*CronInput) ProducesInputs() core.TypeSet { return producesTicks() }

// Run starts the scheduler and stops it when ctx is done, waiting for a
// running job to finish.
func (i *CronInput) Run(ctx context.Context) error {
	if !i.Bound() {
		return core.ErrNotBound
	}
	c := cron.New(cron.WithLocation(i.location))
	c.Schedule(i.schedule, cron.FuncJob(func() {
		if err := i.Emit(tick(i.name, time.Now().In(i.location))); err != nil {
			slog.Warn("schedule: dropped tick", "job", i.name, "error", err)
		}
	}))

	slog.Info("Starting cron schedule", "job", i.name, "next", i.schedule.Next(time.Now().In(i.location)))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("Stopping cron schedule", "job", i.name)
	return nil
}

// IntervalInput fires every interval.
type IntervalInput struct {
	core.InputBinding
	name      string
	interval  time.Duration
	immediate bool
}

// NewIntervalInput builds an IntervalInput.
func NewIntervalInput(name string, interval time.Duration, immediate bool) *IntervalInput {
	return &IntervalInput{name: name, interval: interval, immediate: immediate}
}

func (i *IntervalInput) Name() string { return "interval:" + i.name }

func (*IntervalInput) ProducesInputs() core.TypeSet { return producesTicks() }

// Run ticks until ctx is done.
func (i *IntervalInput) Run(ctx context.Context) error {
	if i.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", i.interval)
	}
	slog.Info("Starting interval schedule", "job", i.name, "interval", i.interval)
	if i.immediate {
		if err := i.Emit(tick(i.name, time.Now())); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping interval schedule", "job", i.name)
			return nil
		case at := <-ticker.C:
			if err := i.Emit(tick(i.name, at)); err != nil {
				return err
			}
		}
	}
}
