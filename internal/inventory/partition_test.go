package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func set(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func TestPartition(t *testing.T) {
	inv := Partition(Input{
		Candidates: []string{"e.jpg", "a.jpg", "b.jpg", "c.jpg", "d.jpg", "f.jpg"},
		Labeled:    set("a.jpg", "old.jpg"),
		Skipped:    set("b.jpg"),
		Leases:     map[string]string{"c.jpg": "alice", "d.jpg": "bob"},
		Requester:  "alice",
	})

	assert.Equal(t, []string{"c.jpg", "e.jpg", "f.jpg"}, inv.Available)
	assert.Equal(t, []string{"c.jpg"}, inv.Held)
	assert.Equal(t, []string{"d.jpg"}, inv.LeasedElsewhere)
	assert.Equal(t, 2, inv.LabeledCount)
	assert.Equal(t, 1, inv.SkippedCount)
}

func TestPartition_EmptyPool(t *testing.T) {
	inv := Partition(Input{Requester: "alice"})

	assert.NotNil(t, inv.Available)
	assert.Empty(t, inv.Available)
	assert.Empty(t, inv.Held)
	assert.Empty(t, inv.LeasedElsewhere)
}

func TestPartition_AnonymousRequesterSeesNoHeld(t *testing.T) {
	inv := Partition(Input{
		Candidates: []string{"a.jpg", "b.jpg"},
		Leases:     map[string]string{"a.jpg": "alice"},
	})

	assert.Equal(t, []string{"b.jpg"}, inv.Available)
	assert.Equal(t, []string{"a.jpg"}, inv.LeasedElsewhere)
}

func TestUnlabeled(t *testing.T) {
	n := Unlabeled([]string{"a.jpg", "b.jpg", "c.jpg"}, set("a.jpg"), set("b.jpg", "z.jpg"))
	assert.Equal(t, 1, n)
}
