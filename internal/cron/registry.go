package cron

import (
	"context"
	"fmt"
)

// Names of the maintenance jobs. They label metrics and select a job for
// cron-worker -run-once.
const (
	JobGuestCartCleanup = "guest-cart-cleanup"
	JobOutboxRetention  = "outbox-retention"
)

// Sweep reports what one maintenance run removed and how many rows it had to
// leave behind.
type Sweep struct {
	Removed int64
	Failed  int64
}

// Job is one maintenance pass over carts or outbox rows.
type Job interface {
	Name() string
	Run(ctx context.Context) (Sweep, error)
}

// Registry keeps jobs by name and runs them in registration order.
type Registry struct {
	order []string
	jobs  map[string]Job
}

// NewRegistry registers jobs in order, skipping nil entries.
func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{jobs: map[string]Job{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds job. Names must be unique so metrics series stay distinct.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if r.jobs == nil {
		r.jobs = map[string]Job{}
	}
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	r.jobs[name] = job
	r.order = append(r.order, name)
	return nil
}

// Lookup finds a registered job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.jobs[name]
	return job, ok
}

// Names lists job names in run order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Jobs returns the jobs in run order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.jobs[name])
	}
	return jobs
}
