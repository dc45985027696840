package actor

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

//go:embed pregens.json
var builtinPregens []byte

// ErrUnknownPregen is returned by Lookup for ids not on the roster.
var ErrUnknownPregen = errors.New("unknown pregen")

// Roster is the fixed, locally defined set of pre-built protagonists.
type Roster struct {
	pcs []*PC
}

// DefaultRoster builds the roster shipped with the engine.
func DefaultRoster() (*Roster, error) {
	return ParseRoster(builtinPregens)
}

// LoadRoster reads a roster file, falling back to the built-in roster
// when path is empty.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return DefaultRoster()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pregen roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster builds a roster from a JSON array of PCSpecs.
func ParseRoster(data []byte) (*Roster, error) {
	var specs []*PCSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pregen roster: %w", err)
	}

	r := &Roster{}
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		pc, err := NewPCFromSpec(spec)
		if err != nil {
			return nil, err
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate pregen id %q", spec.ID)
		}
		seen[spec.ID] = true
		r.pcs = append(r.pcs, pc)
	}
	return r, nil
}

// All returns the pregens in roster order.
func (r *Roster) All() []*PC {
	return r.pcs
}

// Lookup finds a pregen by id.
func (r *Roster) Lookup(id string) (*PC, error) {
	for _, pc := range r.pcs {
		if pc.Spec.ID == id {
			return pc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPregen, id)
}
