package registry

import (
	"fmt"

	"github.com/gobwas/glob"
)

// FilterMembers returns the members whose name matches the glob pattern,
// preserving order. An empty pattern or "*" matches everything.
func FilterMembers(members []Member, pattern string) ([]Member, error) {
	if pattern == "" || pattern == "*" {
		return members, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid member pattern %q: %w", pattern, err)
	}

	var out []Member
	for _, m := range members {
		if g.Match(m.Name) {
			out = append(out, m)
		}
	}
	return out, nil
}
