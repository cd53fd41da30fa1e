// Package backupmode defines the reconciliation mode that governs how the
// Plan Service turns a source/destination snapshot pair into a Plan.
package backupmode

import (
	"encoding/json"
	"fmt"

	"github.com/pixelgardenlabs/dirbackup/pkg/util"
)

// Mode selects the reconciliation strategy applied to the destination tree.
type Mode int

const (
	// Sync makes the destination an exact mirror of the source: creates and
	// updates what's missing or stale, and removes anything the source no
	// longer has.
	Sync Mode = iota
	// Add copies and updates entries from the source into the destination
	// without ever deleting anything already present at the destination.
	Add
	// Remove deletes from the destination anything absent from the source,
	// without copying or updating anything.
	Remove
)

var modeNames = map[Mode]string{
	Sync:   "sync",
	Add:    "add",
	Remove: "remove",
}

var namesToMode = util.InvertMap(modeNames)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// Parse converts a lowercase mode name into a Mode.
func Parse(s string) (Mode, error) {
	if m, ok := namesToMode[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid backup mode %q: must be one of sync, add, remove", s)
}

// MarshalJSON implements json.Marshaler.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
