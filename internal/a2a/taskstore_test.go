package a2a

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(id, contextID string, state TaskState) Task {
	return Task{ID: id, ContextID: contextID, Status: TaskStatus{State: state}}
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	s := NewTaskStore(0)
	require.NoError(t, s.Create(newTask("t1", "c1", TaskStateSubmitted)))

	got, err := s.Get("t1", nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ContextID)

	err = s.Create(newTask("t1", "c2", TaskStateSubmitted))
	assert.ErrorContains(t, err, "already exists")

	_, err = s.Get("missing", nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_GetReturnsCopy(t *testing.T) {
	s := NewTaskStore(0)
	task := newTask("t1", "c1", TaskStateWorking)
	task.History = []Message{{MessageID: "m1", Role: RoleUser, Parts: []Part{{Data: json.RawMessage(`{"a":1}`)}}}}
	require.NoError(t, s.Create(task))

	got, err := s.Get("t1", nil)
	require.NoError(t, err)
	got.History[0].Parts[0].Data[2] = 'X'
	got.Status.State = TaskStateFailed

	again, err := s.Get("t1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again.History[0].Parts[0].Data))
	assert.Equal(t, TaskStateWorking, again.Status.State)
}

func TestTaskStore_GetHistoryLength(t *testing.T) {
	s := NewTaskStore(0)
	task := newTask("t1", "c1", TaskStateWorking)
	for i := range 4 {
		task.History = append(task.History, Message{MessageID: fmt.Sprintf("m%d", i)})
	}
	require.NoError(t, s.Create(task))

	two := 2
	got, err := s.Get("t1", &two)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, "m2", got.History[0].MessageID)

	zero := 0
	got, err = s.Get("t1", &zero)
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestTaskStore_Update(t *testing.T) {
	s := NewTaskStore(0)
	require.NoError(t, s.Create(newTask("t1", "c1", TaskStateSubmitted)))

	got, err := s.Update("t1", func(task *Task) { task.Status.State = TaskStateCompleted })
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, got.Status.State)

	_, err = s.Update("nope", func(*Task) {})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_EvictsOldestFinishedTask(t *testing.T) {
	s := NewTaskStore(2)
	require.NoError(t, s.Create(newTask("running", "c", TaskStateWorking)))
	require.NoError(t, s.Create(newTask("done", "c", TaskStateCompleted)))
	require.NoError(t, s.Create(newTask("new", "c", TaskStateSubmitted)))

	assert.Equal(t, 2, s.Len())
	_, err := s.Get("done", nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = s.Get("running", nil)
	assert.NoError(t, err)

	err = s.Create(newTask("overflow", "c", TaskStateSubmitted))
	assert.ErrorContains(t, err, "task store full")
}

func TestTaskStore_List(t *testing.T) {
	s := NewTaskStore(0)
	require.NoError(t, s.Create(newTask("t1", "a", TaskStateCompleted)))
	require.NoError(t, s.Create(newTask("t2", "b", TaskStateFailed)))
	require.NoError(t, s.Create(newTask("t3", "a", TaskStateCompleted)))
	require.NoError(t, s.Create(newTask("t4", "a", TaskStateWorking)))

	tests := []struct {
		name    string
		filter  ListTasksRequest
		wantIDs []string
		total   int
		next    string
	}{
		{"all", ListTasksRequest{}, []string{"t1", "t2", "t3", "t4"}, 4, ""},
		{"by context", ListTasksRequest{ContextID: "a"}, []string{"t1", "t3", "t4"}, 3, ""},
		{"by status", ListTasksRequest{Status: "completed"}, []string{"t1", "t3"}, 2, ""},
		{"first page", ListTasksRequest{PageSize: 2}, []string{"t1", "t2"}, 4, "t2"},
		{"second page", ListTasksRequest{PageSize: 2, PageToken: "t2"}, []string{"t3", "t4"}, 4, ""},
		{"no match", ListTasksRequest{ContextID: "z"}, []string{}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.List(tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, task := range resp.Tasks {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.total, resp.TotalSize)
			assert.Equal(t, tt.next, resp.NextPageToken)
		})
	}
}

func TestTaskStore_ListStripsArtifacts(t *testing.T) {
	s := NewTaskStore(0)
	task := newTask("t1", "c", TaskStateCompleted)
	task.Artifacts = []Artifact{{ArtifactID: "a1", Name: "editorial"}}
	require.NoError(t, s.Create(task))

	resp, err := s.List(ListTasksRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Tasks[0].Artifacts)

	resp, err = s.List(ListTasksRequest{IncludeArtifacts: true})
	require.NoError(t, err)
	assert.Len(t, resp.Tasks[0].Artifacts, 1)
}

func TestTaskStore_ListBadPageToken(t *testing.T) {
	_, err := NewTaskStore(0).List(ListTasksRequest{PageToken: "ghost"})
	assert.ErrorIs(t, err, ErrInvalidParams)
}
