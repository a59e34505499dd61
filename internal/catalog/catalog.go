// Package catalog loads requests and vendor profiles from YAML files
// and shortlists the vendors worth opening a session with.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/strategy"
)

// File is one vendor catalog document. Contexts are optional per-vendor
// selling situations keyed by vendor ID.
type File struct {
	Vendors  []domain.VendorProfile            `yaml:"vendors"`
	Contexts map[string]strategy.VendorContext `yaml:"contexts"`
}

// LoadFile reads and validates a vendor catalog.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(f.Vendors) == 0 {
		return nil, fmt.Errorf("%w: catalog %s has no vendors", domain.ErrConfig, path)
	}
	seen := map[string]bool{}
	for i := range f.Vendors {
		v := &f.Vendors[i]
		if v.ID == "" {
			return nil, fmt.Errorf("%w: catalog %s: vendor %d has no id", domain.ErrConfig, path, i)
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("%w: catalog %s: duplicate vendor id %s", domain.ErrConfig, path, v.ID)
		}
		seen[v.ID] = true
	}
	return &f, nil
}

// LoadRequest reads one procurement request document.
func LoadRequest(path string) (*domain.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request %s: %w", path, err)
	}
	var req domain.Request
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request %s: %w", path, err)
	}
	if req.ID == "" {
		return nil, fmt.Errorf("%w: request %s has no id", domain.ErrConfig, path)
	}
	return &req, nil
}

// Shortlist picks the vendors a request should negotiate with: able to
// quote, serving the region, ordered by how much of the must-have list
// they cover (reliability breaks ties). Compliance gaps are left in;
// the session precheck rejects those with an explicit reason.
func Shortlist(req *domain.Request, vendors []domain.VendorProfile) []*domain.VendorProfile {
	type scored struct {
		v        *domain.VendorProfile
		coverage float64
	}
	var picks []scored
	for i := range vendors {
		v := &vendors[i]
		if v.ListPrice(req.Quantity) <= 0 {
			continue
		}
		if !v.ServesRegion(req.Region) {
			continue
		}
		picks = append(picks, scored{v: v, coverage: coverage(req, v)})
	}

	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].coverage != picks[j].coverage {
			return picks[i].coverage > picks[j].coverage
		}
		if ri, rj := picks[i].v.Reliability.Composite(), picks[j].v.Reliability.Composite(); ri != rj {
			return ri > rj
		}
		return picks[i].v.ID < picks[j].v.ID
	})

	out := make([]*domain.VendorProfile, 0, len(picks))
	for _, p := range picks {
		out = append(out, p.v)
	}
	return out
}

func coverage(req *domain.Request, v *domain.VendorProfile) float64 {
	if len(req.MustHaves) == 0 {
		return 1.0
	}
	covered := 0
	for _, tag := range req.MustHaves {
		if v.HasCapability(tag) {
			covered++
		}
	}
	return float64(covered) / float64(len(req.MustHaves))
}
