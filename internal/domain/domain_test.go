package domain

import "testing"

// ─── Mode Enumeration ───────────────────────────────────────────────────────

func TestParseMode_RoundTrip(t *testing.T) {
	for _, m := range Modes() {
		got, ok := ParseMode(m.String())
		if !ok {
			t.Fatalf("ParseMode(%q) not found", m.String())
		}
		if got != m {
			t.Errorf("ParseMode(%q) = %v, want %v", m.String(), got, m)
		}
	}
	if _, ok := ParseMode("DETUMBLING"); ok {
		t.Error("ParseMode accepted a name outside the enumeration")
	}
}

func TestAdjacency_CoversEveryMode(t *testing.T) {
	for _, m := range Modes() {
		if _, ok := Adjacency[m]; !ok {
			t.Errorf("mode %v has no adjacency entry", m)
		}
	}
	for m, targets := range Adjacency {
		for _, target := range targets {
			if !target.Valid() {
				t.Errorf("adjacency of %v lists invalid mode %v", m, target)
			}
		}
	}
}

func TestAdjacency_SafeIsNarrow(t *testing.T) {
	// The only normal exit from SAFE is NOMINAL.
	if !ModeSafe.Adjacent(ModeNominal) {
		t.Error("SAFE must reach NOMINAL normally")
	}
	if ModeSafe.Adjacent(ModeDownlink) {
		t.Error("SAFE must not reach DOWNLINK normally")
	}
}

// ─── Task Enumeration ───────────────────────────────────────────────────────

func TestParseTaskID_RoundTrip(t *testing.T) {
	for _, id := range TaskIDs() {
		got, ok := ParseTaskID(id.String())
		if !ok {
			t.Fatalf("ParseTaskID(%q) not found", id.String())
		}
		if got != id {
			t.Errorf("ParseTaskID(%q) = %v, want %v", id.String(), got, id)
		}
	}
}

// ─── Activation Tables ──────────────────────────────────────────────────────

// Every mode must carry a table, every table row must reference a declared
// task with legal parameters, and the always-on tasks must be present
// everywhere. A gap here is a configuration bug, not a runtime condition.
func TestModeTaskConfig_Exhaustive(t *testing.T) {
	alwaysOn := []TaskID{TaskCommand, TaskTiming, TaskEPS, TaskMonitor}

	for _, m := range Modes() {
		table, ok := ModeTaskConfig[m]
		if !ok {
			t.Fatalf("mode %v has no task table", m)
		}
		for id, params := range table {
			if !id.Valid() {
				t.Errorf("mode %v activates invalid task %v", m, id)
			}
			if params.FrequencyHz <= 0 {
				t.Errorf("mode %v task %v has non-positive frequency %v", m, id, params.FrequencyHz)
			}
			if params.Priority < 1 {
				t.Errorf("mode %v task %v has priority %d, want >= 1", m, id, params.Priority)
			}
		}
		for _, id := range alwaysOn {
			if _, ok := table[id]; !ok {
				t.Errorf("mode %v is missing always-on task %v", m, id)
			}
		}
	}
}

func TestModeTaskConfig_CommandLeads(t *testing.T) {
	for _, m := range Modes() {
		if got := ModeTaskConfig[m][TaskCommand].Priority; got != 1 {
			t.Errorf("mode %v: COMMAND priority = %d, want 1", m, got)
		}
	}
}
