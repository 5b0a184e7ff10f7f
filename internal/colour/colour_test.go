package colour

import "testing"

func TestNewRequiresDefault(t *testing.T) {
	_, err := New(map[string]string{"TO_DO": "7"})
	if err == nil {
		t.Fatal("New() accepted a map without a DEFAULT entry")
	}
}

func TestNewRejectsEmptyColour(t *testing.T) {
	_, err := New(map[string]string{"TO_DO": "", DefaultKey: "8"})
	if err == nil {
		t.Fatal("New() accepted an empty colour id")
	}
}

func TestLookup(t *testing.T) {
	m, err := New(map[string]string{
		"TO_DO":    "7",
		"DONE":     "10",
		DefaultKey: "8",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		name   string
		status string
		want   string
	}{
		{"configured status", "TO_DO", "7"},
		{"another configured status", "DONE", "10"},
		{"unknown status falls back", "ARCHIVED", "8"},
		{"empty status falls back", "", "8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Lookup(tt.status); got != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestDefaultMap(t *testing.T) {
	m := Default()
	if got := m.Lookup("TO_DO"); got != "7" {
		t.Errorf("default map: Lookup(TO_DO) = %q, want 7", got)
	}
	if got := m.Lookup("something-else"); got != "8" {
		t.Errorf("default map: fallback = %q, want 8", got)
	}
}

func TestStatusesExcludesDefault(t *testing.T) {
	m := Default()
	for _, status := range m.Statuses() {
		if status == DefaultKey {
			t.Fatal("Statuses() included the DEFAULT entry")
		}
	}
}
