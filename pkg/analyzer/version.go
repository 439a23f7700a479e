package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
)

var semverRE = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts the first "X.Y.Z" substring from text into a
// Version. Analyzers that report only major.minor (e.g. "18.0") pad the
// missing component with zero.
func ParseVersion(text string) (Version, error) {
	m := semverRE.FindStringSubmatch(text)
	if m == nil {
		return Version{}, fmt.Errorf("analyzer: no version found in %q", text)
	}

	var v Version

	for i := range 3 {
		if m[i+1] == "" {
			continue
		}

		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, fmt.Errorf("analyzer: parse version component %q: %w", m[i+1], err)
		}

		v[i] = n
	}

	return v, nil
}
