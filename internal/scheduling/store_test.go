package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

func TestAssignmentStore_Queries(t *testing.T) {
	cancelled := assignment("x", "S1", "R1", jan(2), jan(3), 50)
	cancelled.Status = model.AssignmentStatusCancelled

	store := NewAssignmentStore(
		[]model.Schedule{schedule("S1", jan(1), jan(8)), schedule("S2", jan(1), jan(8))},
		[]model.ScheduleAssignment{
			assignment("c", "S1", "R2", jan(3), jan(4), 50),
			assignment("b", "S1", "R1", jan(4), jan(6), 50),
			assignment("a", "S2", "R1", jan(1), jan(3), 50),
			cancelled,
		})

	_, ok := store.Schedule("S1")
	assert.True(t, ok)

	got, ok := store.Get("x")
	require.True(t, ok, "已取消的分配仍可按 ID 查询")
	assert.True(t, got.IsCancelled())

	r1 := store.ByResource("R1")
	require.Len(t, r1, 2)
	assert.Equal(t, "a", r1[0].AssignmentID)
	assert.Equal(t, "b", r1[1].AssignmentID)

	assert.Equal(t, []string{"R1", "R2"}, store.ResourcesInSchedule("S1"))
	assert.Equal(t, []string{"R1"}, store.ResourcesInSchedule("S2"))

	s1 := store.BySchedule("S1")
	require.Len(t, s1, 2)
	assert.Equal(t, "c", s1[0].AssignmentID)

	overlapping, err := store.Overlapping("R1", jan(3), jan(5))
	require.NoError(t, err)
	require.Len(t, overlapping, 1, "[01-01,01-03) 与 [01-03,01-05) 相邻不重叠")
	assert.Equal(t, "b", overlapping[0].AssignmentID)

	_, err = store.Overlapping("R1", jan(5), jan(5))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInterval)
}
