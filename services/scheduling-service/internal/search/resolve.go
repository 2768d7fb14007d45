package search

import (
	"slices"
	"strings"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

type resolutionKind int

const (
	serviceResolved resolutionKind = iota
	serviceAmbiguous
	serviceUnknown
)

type serviceResolution struct {
	kind       resolutionKind
	service    model.Service
	candidates []model.Service
}

// resolveService matches ref against the catalog by id, then exact folded name, then
// name containment. It never picks one of several candidates.
func resolveService(ref string, catalog []model.Service) serviceResolution {
	ref = strings.TrimSpace(ref)
	for _, s := range catalog {
		if strings.EqualFold(s.ID, ref) {
			return serviceResolution{kind: serviceResolved, service: s}
		}
	}

	var exact, partial []model.Service
	needle := model.Fold(ref)
	for _, s := range catalog {
		name := model.Fold(s.Name)
		switch {
		case name == needle:
			exact = append(exact, s)
		case strings.Contains(name, needle):
			partial = append(partial, s)
		}
	}

	switch {
	case len(exact) == 1:
		return serviceResolution{kind: serviceResolved, service: exact[0]}
	case len(exact) > 1:
		return serviceResolution{kind: serviceAmbiguous, candidates: byName(exact)}
	case len(partial) == 1:
		return serviceResolution{kind: serviceResolved, service: partial[0]}
	case len(partial) > 1:
		return serviceResolution{kind: serviceAmbiguous, candidates: byName(partial)}
	default:
		return serviceResolution{kind: serviceUnknown, candidates: byName(catalog)}
	}
}

func byName(services []model.Service) []model.Service {
	out := slices.Clone(services)
	slices.SortStableFunc(out, func(a, b model.Service) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
