package registry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPendingTableTakeIsExactlyOnce verifies that for any sequence of
// distinct ids inserted into a PendingTable, each id can be taken exactly
// once: the first Take succeeds and removes the entry, every subsequent
// Take for that id reports absent. It also checks that DetachSkill removes
// only the entries owned by the detaching skill.
func TestPendingTableTakeIsExactlyOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("take removes an entry exactly once", prop.ForAll(
		func(id uint64, skillID string) bool {
			table := NewPendingTable[int]()
			table.Insert(id, skillID)

			_, firstOK := table.Take(id)
			_, secondOK := table.Take(id)

			return firstOK && !secondOK
		},
		gen.UInt64(),
		gen.AlphaString(),
	))

	properties.Property("detaching a skill removes only its own entries", prop.ForAll(
		func(ownerID, otherID uint64, owner, other string) bool {
			if ownerID == otherID || owner == other {
				return true
			}
			table := NewPendingTable[int]()
			table.Insert(ownerID, owner)
			table.Insert(otherID, other)

			table.DetachSkill(owner)

			_, ownerStillThere := table.Take(ownerID)
			_, otherStillThere := table.Take(otherID)

			return !ownerStillThere && otherStillThere
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
