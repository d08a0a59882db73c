// Package inventory computes which pool images a requester may work on.
package inventory

import (
	"sort"

	"github.com/starford/skylabel/internal/models"
)

// Input is everything Partition needs. It is gathered fresh on every
// request; nothing here is cached.
type Input struct {
	// Candidates is the current listing of the unlabeled pool.
	Candidates []string
	// Labeled holds source filenames that already have an annotation.
	Labeled map[string]struct{}
	// Skipped holds filenames with a skip record.
	Skipped map[string]struct{}
	// Leases maps filename to holder for every live lease.
	Leases map[string]string
	// Requester is the holder asking.
	Requester string
}

// Partition removes labeled and skipped images from the candidates and
// splits the rest by lease state. Images leased by the requester appear in
// both Held and Available so a reconnecting annotator can resume them.
func Partition(in Input) models.Inventory {
	inv := models.Inventory{
		Available:       []string{},
		Held:            []string{},
		LeasedElsewhere: []string{},
		LabeledCount:    len(in.Labeled),
		SkippedCount:    len(in.Skipped),
	}

	for _, name := range in.Candidates {
		if _, ok := in.Labeled[name]; ok {
			continue
		}
		if _, ok := in.Skipped[name]; ok {
			continue
		}
		holder, leased := in.Leases[name]
		switch {
		case !leased:
			inv.Available = append(inv.Available, name)
		case holder == in.Requester:
			inv.Held = append(inv.Held, name)
			inv.Available = append(inv.Available, name)
		default:
			inv.LeasedElsewhere = append(inv.LeasedElsewhere, name)
		}
	}

	sort.Strings(inv.Available)
	sort.Strings(inv.Held)
	sort.Strings(inv.LeasedElsewhere)
	return inv
}

// Unlabeled counts candidates that are neither labeled nor skipped.
func Unlabeled(candidates []string, labeled, skipped map[string]struct{}) int {
	n := 0
	for _, name := range candidates {
		if _, ok := labeled[name]; ok {
			continue
		}
		if _, ok := skipped[name]; ok {
			continue
		}
		n++
	}
	return n
}
