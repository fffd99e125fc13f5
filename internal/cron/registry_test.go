package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	jobA, jobB := &stubJob{name: "outbox-retention"}, &stubJob{name: "carrier-capacity-reset"}
	registry, err := NewRegistry(jobA, jobB)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order: %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if names := registry.Names(); names[0] != "carrier-capacity-reset" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
	registry, _ := NewRegistry()
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil job to be rejected")
	}
}

func TestRegistrySelect(t *testing.T) {
	jobA, jobB, jobC := &stubJob{name: "a"}, &stubJob{name: "b"}, &stubJob{name: "c"}
	registry, _ := NewRegistry(jobA, jobB, jobC)

	all, err := registry.Select()
	if err != nil || len(all) != 3 {
		t.Fatalf("expected every job, got %d (%v)", len(all), err)
	}
	picked, err := registry.Select("c", "a")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(picked) != 2 || picked[0] != jobA || picked[1] != jobC {
		t.Fatalf("expected registration order [a c], got %v", picked)
	}
	if _, err := registry.Select("missing"); err == nil {
		t.Fatalf("expected unknown job error")
	}
}
