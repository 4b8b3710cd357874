package override

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/state"
)

var testModel = catalog.Ref{Provider: "anthropic", Model: "claude-sonnet-4-20250514"}

func newTestStore(t *testing.T, now *time.Time) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "override.json")
	s := NewStore(state.NewFileStore(path), Options{
		Now: func() time.Time { return *now },
	})
	return s, path
}

func TestStore_SetGet(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)

	s.Set(testModel, 0)

	st, ok := s.Get()
	if !ok {
		t.Fatal("Get() = none, want active override")
	}
	if st.Model != testModel {
		t.Errorf("Model = %v, want %v", st.Model, testModel)
	}
	if st.TTL != 24*time.Hour {
		t.Errorf("TTL = %v, want default 24h", st.TTL)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", st.ConsecutiveFailures)
	}
}

func TestStore_Expiry(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := start
	s, path := newTestStore(t, &now)

	s.Set(testModel, 24*time.Hour)

	now = start.Add(25 * time.Hour)
	if _, ok := s.Get(); ok {
		t.Fatal("Get() returned an override 25h after a 24h TTL")
	}

	// The clear is written through, not just held in memory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var p map[string]any
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	if model, _ := p["specified_model"].(string); model != "" {
		t.Errorf("persisted specified_model = %q after expiry, want empty", model)
	}
}

func TestStore_FailureExhaustion(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)

	s.Set(testModel, 0)

	s.RecordOutcome(false)
	s.RecordOutcome(false)
	if _, ok := s.Get(); !ok {
		t.Fatal("override cleared before reaching the failure limit")
	}

	// Third failure clears eagerly, not lazily on the next Get.
	s.RecordOutcome(false)
	if _, ok := s.Get(); ok {
		t.Fatal("override still active after 3 consecutive failures")
	}

	// A 4th outcome has nothing to act on.
	s.RecordOutcome(false)
	if _, ok := s.Get(); ok {
		t.Fatal("override reappeared")
	}
}

func TestStore_SuccessResetsFailures(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)

	s.Set(testModel, 0)
	s.RecordOutcome(false)
	s.RecordOutcome(false)
	s.RecordOutcome(true)
	s.RecordOutcome(false)
	s.RecordOutcome(false)

	st, ok := s.Get()
	if !ok {
		t.Fatal("override cleared despite interleaved success")
	}
	if st.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", st.ConsecutiveFailures)
	}
}

func TestStore_ClearIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)

	s.Set(testModel, 0)
	s.Clear()
	s.Clear()

	if _, ok := s.Get(); ok {
		t.Fatal("override active after Clear()")
	}
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "override.json")
	clock := func() time.Time { return now }

	first := NewStore(state.NewFileStore(path), Options{Now: clock})
	first.Set(testModel, time.Hour)
	first.RecordOutcome(false)

	second := NewStore(state.NewFileStore(path), Options{Now: clock})
	st, ok := second.Get()
	if !ok {
		t.Fatal("override lost across restart")
	}
	if st.Model != testModel {
		t.Errorf("Model = %v, want %v", st.Model, testModel)
	}
	if st.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", st.ConsecutiveFailures)
	}
}

func TestStore_ColdStartOnCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(state.NewFileStore(path), Options{Now: func() time.Time { return now }})
	if _, ok := s.Get(); ok {
		t.Fatal("corrupt state produced an active override")
	}
}

func TestStore_ExpiresAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)

	s.Set(testModel, 2*time.Hour)
	st, ok := s.Get()
	if !ok {
		t.Fatal("expected active override")
	}
	if want := now.Add(2 * time.Hour); !st.ExpiresAt().Equal(want) {
		t.Errorf("ExpiresAt() = %v, want %v", st.ExpiresAt(), want)
	}
}
