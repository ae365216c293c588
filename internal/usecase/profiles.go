package usecase

import (
	"slices"
	"sort"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// ProfileCatalog resolves which elevation profiles a principal may use.
type ProfileCatalog struct {
	profiles []domain.Profile
	byName   map[string]domain.Profile
}

// NewProfileCatalog indexes profiles, ordering them by name.
func NewProfileCatalog(profiles []domain.Profile) *ProfileCatalog {
	sorted := slices.Clone(profiles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	byName := make(map[string]domain.Profile, len(sorted))
	for _, p := range sorted {
		byName[p.Name] = p
	}
	return &ProfileCatalog{profiles: sorted, byName: byName}
}

// Eligible returns the profiles whose group the principal belongs to, in name order.
func (c *ProfileCatalog) Eligible(groups []string) []domain.Profile {
	member := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		member[g] = struct{}{}
	}

	var out []domain.Profile
	for _, p := range c.profiles {
		if _, ok := member[p.GroupName]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the named profile.
func (c *ProfileCatalog) Lookup(name string) (domain.Profile, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// ResolveDuration picks the session length in seconds. A positive override wins; otherwise any
// unlimited profile makes the session unlimited, else the longest profile duration is used, falling
// back to fallback when no profile sets one.
func ResolveDuration(profiles []domain.Profile, override, fallback int) int {
	if override > 0 {
		return override
	}
	longest := 0
	for _, p := range profiles {
		if p.Duration == 0 {
			return 0
		}
		longest = max(longest, p.Duration)
	}
	if longest == 0 {
		return fallback
	}
	return longest
}

// Permissions returns the union of the named profiles' permissions, deduplicated, first-seen order.
func (c *ProfileCatalog) Permissions(names []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range names {
		p, ok := c.byName[name]
		if !ok {
			continue
		}
		for _, perm := range p.Permissions {
			if _, dup := seen[perm]; dup {
				continue
			}
			seen[perm] = struct{}{}
			out = append(out, perm)
		}
	}
	return out
}

func profileNames(profiles []domain.Profile) []string {
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return names
}
