package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTableInsertAndTake(t *testing.T) {
	tbl := NewPendingTable[float32]()

	ch := tbl.Insert(7, "com.example.a")
	require.Equal(t, 1, tbl.Len())

	got, ok := tbl.Take(7)
	require.True(t, ok)
	require.NotNil(t, got)

	got <- 0.9
	assert.Equal(t, float32(0.9), <-ch)
	assert.Equal(t, 0, tbl.Len())
}

func TestPendingTableTakeAbsentReportsFalse(t *testing.T) {
	tbl := NewPendingTable[float32]()
	_, ok := tbl.Take(42)
	assert.False(t, ok)
}

func TestPendingTableTakeIsSingleConsumer(t *testing.T) {
	tbl := NewPendingTable[float32]()
	tbl.Insert(1, "com.example.a")

	_, ok := tbl.Take(1)
	require.True(t, ok)

	_, ok = tbl.Take(1)
	assert.False(t, ok, "a second Take for the same id must report absent")
}

func TestPendingTableInsertDuplicateIDPanics(t *testing.T) {
	tbl := NewPendingTable[float32]()
	tbl.Insert(5, "com.example.a")
	assert.Panics(t, func() {
		tbl.Insert(5, "com.example.a")
	})
}

func TestPendingTableDetachSkillSweepsOwnedEntries(t *testing.T) {
	tbl := NewPendingTable[float32]()
	tbl.Insert(1, "com.example.a")
	tbl.Insert(2, "com.example.b")
	tbl.Insert(3, "com.example.a")

	swept := tbl.DetachSkill("com.example.a")
	assert.ElementsMatch(t, []uint64{1, 3}, swept)
	assert.Equal(t, 1, tbl.Len())

	_, ok := tbl.Take(2)
	assert.True(t, ok, "entries owned by other skills are untouched")
}

func TestPendingTableDetachSkillClosesChannel(t *testing.T) {
	tbl := NewPendingTable[float32]()
	ch := tbl.Insert(1, "com.example.a")
	tbl.DetachSkill("com.example.a")

	v, ok := <-ch
	assert.False(t, ok, "a swept entry's channel is closed so awaiting receivers unblock")
	assert.Equal(t, float32(0), v)
}

func TestPendingTableIndependentAcrossInstances(t *testing.T) {
	canAnswer := NewPendingTable[float32]()
	activate := NewPendingTable[ActivationReply]()

	canAnswer.Insert(1, "com.example.a")
	activate.Insert(1, "com.example.a")

	_, ok := canAnswer.Take(1)
	assert.True(t, ok)
	_, ok = activate.Take(1)
	assert.True(t, ok, "the two tables share no keys")
}
