package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varflow/varflow/pkg/ir"
)

func TestFinalState(t *testing.T) {
	tests := []struct {
		name string
		v    Variable
		want State
	}{
		{"untouched", Variable{}, StateDeclared},
		{"read only", Variable{EverRead: true}, StateRead},
		{"written only", Variable{EverWritten: true}, StateAssigned},
		{"written and read", Variable{EverWritten: true, EverRead: true}, StateAssignedThenRead},
		{"address taken", Variable{AddressTaken: true, EverWritten: true}, StateUnknown},
		{"suppressed", Variable{Suppressed: true, EverRead: true}, StateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.FinalState())
		})
	}
}

func TestTableDeclare(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.Get(NoVar))

	a := tbl.Declare(&ir.VarDecl{Name: "a", Type: ir.TypeInfo{Category: ir.TypeScalar}})
	b := tbl.Declare(&ir.VarDecl{Name: "b", Type: ir.TypeInfo{Category: ir.TypeReference}})

	assert.NotEqual(t, NoVar, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "a", tbl.Get(a).Decl.Name)
	assert.False(t, tbl.Get(a).Reference)
	assert.True(t, tbl.Get(b).Reference, "reference category sets the flag at declaration")
	assert.Len(t, tbl.All(), 2)
}

func TestMergeState(t *testing.T) {
	tests := []struct {
		name string
		a, b State
		want State
	}{
		{"identical", StateAssigned, StateAssigned, StateAssigned},
		{"unknown wins left", StateUnknown, StateAssigned, StateUnknown},
		{"unknown wins right", StateRead, StateUnknown, StateUnknown},
		{"declared vs assigned", StateDeclared, StateAssigned, StateAssigned},
		{"declared vs read", StateRead, StateDeclared, StateRead},
		{"assigned vs read", StateAssigned, StateRead, StateAssignedThenRead},
		{"assigned vs full", StateAssigned, StateAssignedThenRead, StateAssignedThenRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeState(tt.a, tt.b))
			assert.Equal(t, tt.want, mergeState(tt.b, tt.a), "merge is symmetric")
		})
	}
}

func TestStatesMerge(t *testing.T) {
	base := States{1: StateDeclared, 2: StateAssigned}
	arm := base.Clone()
	arm[1] = StateAssigned
	arm[3] = StateRead

	base.Merge(arm)

	assert.Equal(t, StateAssigned, base[1])
	assert.Equal(t, StateAssigned, base[2])
	assert.Equal(t, StateRead, base[3], "variables declared inside the arm carry over")
}

func TestStatesCloneIsolation(t *testing.T) {
	base := States{1: StateDeclared}
	arm := base.Clone()
	arm[1] = StateAssigned
	assert.Equal(t, StateDeclared, base[1])
}
