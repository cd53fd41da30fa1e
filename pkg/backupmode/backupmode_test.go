package backupmode

import "testing"

func TestStringAndParseRoundTrip(t *testing.T) {
	for _, m := range []Mode{Sync, Add, Remove} {
		parsed, err := Parse(m.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", m.String(), err)
		}
		if parsed != m {
			t.Errorf("Parse(%q) = %v, want %v", m.String(), parsed, m)
		}
	}
}

func TestParseRejectsUnknownMode(t *testing.T) {
	if _, err := Parse("mirror"); err == nil {
		t.Error("expected an error for an unrecognized mode name")
	}
}

func TestMarshalUnmarshalJSON(t *testing.T) {
	data, err := Sync.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"sync"` {
		t.Errorf("MarshalJSON() = %s, want %q", data, `"sync"`)
	}

	var m Mode
	if err := m.UnmarshalJSON([]byte(`"remove"`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if m != Remove {
		t.Errorf("UnmarshalJSON(remove) = %v, want %v", m, Remove)
	}

	if err := m.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Error("expected an error unmarshaling an unrecognized mode")
	}
}
