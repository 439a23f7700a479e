package checkers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileSet maps a profile name or guideline/severity label to its member
// checker names, loaded from a YAML profile/guideline description file.
type ProfileSet map[string][]string

// LoadProfileSet reads a YAML file of the form:
//
//	default: [checker-a, checker-b]
//	security: [checker-a]
//
// into a ProfileSet. "list" is a reserved key and returns
// ErrReservedProfileName.
func LoadProfileSet(path string) (ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile set %s: %w", path, err)
	}

	var raw map[string][]string

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile set %s: %w", path, err)
	}

	if _, ok := raw[reservedProfileName]; ok {
		return nil, ErrReservedProfileName
	}

	return ProfileSet(raw), nil
}
