// ABOUTME: Tests for Mode and Status enums
// ABOUTME: Covers name round-trips, JSON encoding, and terminal classification

package types

import (
	"encoding/json"
	"testing"
)

func TestParseModeRoundTrip(t *testing.T) {
	t.Parallel()

	for m := ModeChat; m <= ModeTitleGeneration; m++ {
		got, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", m, err)
		}
		if got != m {
			t.Errorf("ParseMode(%q) = %v, want %v", m.String(), got, m)
		}
	}

	if _, err := ParseMode("poetry"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := map[Status]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCanceled:  true,
	}
	for st, want := range tests {
		if st.Terminal() != want {
			t.Errorf("%v.Terminal() = %v, want %v", st, st.Terminal(), want)
		}
	}
}

func TestEnumJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		Mode   Mode   `json:"mode"`
		Status Status `json:"status"`
	}{ModeRegionTransform, StatusFailed})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"mode":"region-transform","status":"failed"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
