package cron

import (
	"context"
	"fmt"
	"sort"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order and indexes them by name.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds job; names must be unique.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if _, dup := r.byName[job.Name()]; dup {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.byName[job.Name()] = job
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Select returns the named jobs in registration order. No names selects everything.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown job %q (registered: %v)", name, r.Names())
		}
		want[name] = true
	}
	selected := make([]Job, 0, len(want))
	for _, job := range r.jobs {
		if want[job.Name()] {
			selected = append(selected, job)
		}
	}
	return selected, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
