package resourcesched

import (
	"testing"

	"github.com/wrightpm/wright/pkg/plan"
)

func TestTotalBudgetPrefersMaxCPUs(t *testing.T) {
	if got := TotalBudget(Config{MaxCPUs: 4}, 16); got != 4 {
		t.Errorf("TotalBudget() = %d, want 4", got)
	}
}

func TestTotalBudgetFallsBackToAvailableMinusFour(t *testing.T) {
	if got := TotalBudget(Config{}, 16); got != 12 {
		t.Errorf("TotalBudget() = %d, want 12", got)
	}
}

func TestTotalBudgetNeverBelowOne(t *testing.T) {
	if got := TotalBudget(Config{}, 2); got != 1 {
		t.Errorf("TotalBudget() = %d, want 1", got)
	}
}

func TestAdmitDividesAcrossActiveDockyards(t *testing.T) {
	s := New(Config{}, 8) // total = 4
	a := s.Admit(plan.BuildTypeDefault, 0)
	if a.CPUs != 4 {
		t.Errorf("first admit share = %d, want 4", a.CPUs)
	}
	b := s.Admit(plan.BuildTypeDefault, 0)
	if b.CPUs != 2 {
		t.Errorf("second admit share = %d, want 2", b.CPUs)
	}
}

func TestAdmitSerialBuildTypeForcesOne(t *testing.T) {
	s := New(Config{}, 16) // total = 12
	share := s.Admit(plan.BuildTypeSerial, 0)
	if share.CPUs != 1 {
		t.Errorf("serial share = %d, want 1", share.CPUs)
	}
}

func TestAdmitHeavyBuildTypeHalvesShare(t *testing.T) {
	s := New(Config{}, 16) // total = 12, single active => share 12
	share := s.Admit(plan.BuildTypeHeavy, 0)
	if share.CPUs != 6 {
		t.Errorf("heavy share = %d, want 6", share.CPUs)
	}
}

func TestAdmitGoBuildTypeInjectsEnv(t *testing.T) {
	s := New(Config{}, 16)
	share := s.Admit(plan.BuildTypeGo, 0)
	if share.Env["GOMAXPROCS"] != share.Env["GOFLAGS"][3:] {
		t.Errorf("GOFLAGS/GOMAXPROCS mismatch: %+v", share.Env)
	}
	if share.Env["GOMAXPROCS"] == "" {
		t.Error("expected GOMAXPROCS to be set")
	}
}

func TestAdmitPlanJobsCapAppliesLast(t *testing.T) {
	s := New(Config{}, 16) // total = 12
	share := s.Admit(plan.BuildTypeDefault, 2)
	if share.CPUs != 2 {
		t.Errorf("share = %d, want 2 (capped by plan jobs)", share.CPUs)
	}
}

func TestNprocPerDockyardOverridesDynamicShare(t *testing.T) {
	s := New(Config{NprocPerDockyard: 3}, 16)
	s.Admit(plan.BuildTypeDefault, 0)
	share := s.Admit(plan.BuildTypeDefault, 0)
	if share.CPUs != 3 {
		t.Errorf("share = %d, want static override 3", share.CPUs)
	}
}

func TestReleaseFreesSlotForFutureAdmissions(t *testing.T) {
	s := New(Config{}, 8) // total = 4
	s.Admit(plan.BuildTypeDefault, 0)
	s.Release()
	share := s.Admit(plan.BuildTypeDefault, 0)
	if share.CPUs != 4 {
		t.Errorf("share after release = %d, want 4", share.CPUs)
	}
}

func TestCPUSetLength(t *testing.T) {
	set := CPUSet(Share{CPUs: 3})
	if len(set) != 3 {
		t.Errorf("len(CPUSet) = %d, want 3", len(set))
	}
}
