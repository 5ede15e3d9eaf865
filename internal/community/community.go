// Package community loads the community definitions that drive a run: each
// community is a named group of counties whose inventories are generated
// together and published as one dataset.
package community

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// County is one county of a community. Order in the YAML list is the order
// county tables are concatenated in the published output.
type County struct {
	FIPS string `yaml:"fips"`
	Name string `yaml:"name"`
}

// Community is a named group of counties.
type Community struct {
	ID       string   `yaml:"-"`
	Name     string   `yaml:"name"`
	Counties []County `yaml:"counties"`
}

// Set holds all defined communities, keyed by ID.
type Set struct {
	byID map[string]Community
}

// Load reads community definitions from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "community: read %s", path)
	}

	// The YAML has a top-level "communities" key
	var wrapper struct {
		Communities map[string]Community `yaml:"communities"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "community: parse definitions")
	}
	if len(wrapper.Communities) == 0 {
		return nil, eris.Errorf("community: %s defines no communities", path)
	}

	set := &Set{byID: make(map[string]Community, len(wrapper.Communities))}
	for id, c := range wrapper.Communities {
		c.ID = id
		if err := validate(c); err != nil {
			return nil, err
		}
		set.byID[id] = c
	}
	return set, nil
}

func validate(c Community) error {
	if len(c.Counties) == 0 {
		return eris.Errorf("community: %s has no counties", c.ID)
	}
	seen := make(map[string]bool, len(c.Counties))
	for _, county := range c.Counties {
		if len(county.FIPS) != 5 {
			return eris.Errorf("community: %s county fips %q is not 5 digits", c.ID, county.FIPS)
		}
		if seen[county.FIPS] {
			return eris.Errorf("community: %s lists county %s twice", c.ID, county.FIPS)
		}
		seen[county.FIPS] = true
	}
	return nil
}

// Get returns the community with the given ID.
func (s *Set) Get(id string) (Community, error) {
	c, ok := s.byID[id]
	if !ok {
		return Community{}, eris.Errorf("community: %q is not defined", id)
	}
	return c, nil
}

// IDs returns all community IDs in sorted order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
