// Package eligibility decides which departments may book which floors.
package eligibility

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Predicate is the externally supplied floor-access rule.
type Predicate interface {
	IsFloorEligible(department, floor string) bool
}

// AllowAll admits every department to every floor.
type AllowAll struct{}

// IsFloorEligible implements Predicate.
func (AllowAll) IsFloorEligible(string, string) bool { return true }

const wildcard = "*"

// FloorPolicy maps departments to the floors they may book.
type FloorPolicy struct {
	rules map[string]map[string]bool // department -> floors; "*" floor means any
}

// ParseFloorPolicy reads "DEPT:2|3;LAW:*;*:1". Department names are case-insensitive.
// A "*" department is the default for departments not listed. An empty spec allows all.
func ParseFloorPolicy(spec string) (*FloorPolicy, error) {
	p := &FloorPolicy{rules: make(map[string]map[string]bool)}
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dept, floors, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("eligibility entry %q: want DEPT:floor|floor", entry)
		}
		if err := p.add(dept, strings.Split(floors, "|")); err != nil {
			return nil, fmt.Errorf("eligibility entry %q: %w", entry, err)
		}
	}
	return p, nil
}

// policyFile is the YAML form:
//
//	floors:
//	  CS: [2, 3]
//	  LAW: ["*"]
//	  "*": [1]
type policyFile struct {
	Floors map[string][]any `yaml:"floors"`
}

// LoadFloorPolicyFile reads a YAML policy maintained by library staff.
func LoadFloorPolicyFile(path string) (*FloorPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read eligibility file: %w", err)
	}
	return ParseFloorPolicyYAML(data)
}

// ParseFloorPolicyYAML parses the YAML form of the policy.
func ParseFloorPolicyYAML(data []byte) (*FloorPolicy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse eligibility yaml: %w", err)
	}
	p := &FloorPolicy{rules: make(map[string]map[string]bool)}
	for dept, raw := range f.Floors {
		floors := make([]string, 0, len(raw))
		for _, v := range raw {
			floors = append(floors, fmt.Sprint(v))
		}
		if err := p.add(dept, floors); err != nil {
			return nil, fmt.Errorf("eligibility department %q: %w", dept, err)
		}
	}
	return p, nil
}

func (p *FloorPolicy) add(dept string, floors []string) error {
	dept = strings.ToUpper(strings.TrimSpace(dept))
	if dept == "" {
		return errors.New("empty department")
	}
	set := p.rules[dept]
	if set == nil {
		set = make(map[string]bool)
		p.rules[dept] = set
	}
	for _, f := range floors {
		if f = strings.TrimSpace(f); f != "" {
			set[f] = true
		}
	}
	if len(set) == 0 {
		return errors.New("no floors")
	}
	return nil
}

// IsFloorEligible implements Predicate.
func (p *FloorPolicy) IsFloorEligible(department, floor string) bool {
	if len(p.rules) == 0 {
		return true
	}
	set, ok := p.rules[strings.ToUpper(strings.TrimSpace(department))]
	if !ok {
		set, ok = p.rules[wildcard]
		if !ok {
			return false
		}
	}
	return set[wildcard] || set[floor]
}
