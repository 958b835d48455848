package runs

import (
	"strings"
	"testing"
	"time"
)

func TestNewRunCreatesDirectory(t *testing.T) {
	store := New(t.TempDir())
	run, err := store.NewRun("orbit")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(run.ID, "orbit_") {
		t.Errorf("run id = %s", run.ID)
	}
	if got := run.SnapshotPath(3); !strings.HasSuffix(got, "state_0003.ssf") {
		t.Errorf("snapshot path = %s", got)
	}
}

func TestSaveAndListMetadata(t *testing.T) {
	store := New(t.TempDir())
	run, err := store.NewRun("orbit")
	if err != nil {
		t.Fatal(err)
	}
	meta := Metadata{
		ID:         run.ID,
		Timestamp:  time.Now(),
		Integrator: "leapfrog",
		Particles:  64,
		Steps:      10,
		Integrals:  map[string]float64{"total_mass": 1.0},
	}
	if err := store.SaveMetadata(run, meta); err != nil {
		t.Fatal(err)
	}

	listed, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d runs, want 1", len(listed))
	}
	if listed[0].ID != run.ID || listed[0].Integrator != "leapfrog" || listed[0].Particles != 64 {
		t.Errorf("metadata round trip mismatch: %+v", listed[0])
	}
	if listed[0].Integrals["total_mass"] != 1.0 {
		t.Error("integrals lost in the round trip")
	}
}

func TestListMissingBaseDir(t *testing.T) {
	store := New(t.TempDir() + "/nope")
	listed, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if listed != nil {
		t.Errorf("expected no runs, got %v", listed)
	}
}

func TestListSkipsMalformedEntries(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	run, err := store.NewRun("good")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveMetadata(run, Metadata{ID: run.ID}); err != nil {
		t.Fatal(err)
	}
	// a run directory without metadata is ignored
	if _, err := store.NewRun("broken"); err != nil {
		t.Fatal(err)
	}

	listed, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Errorf("listed %d runs, want 1", len(listed))
	}
}
