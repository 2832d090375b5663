package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/tasky/internal/models"
)

// memoryGraph backs the resolver with plain maps for tests.
type memoryGraph struct {
	tasks  map[int64]models.Task
	shares map[int64][]int64 // task id -> grantee user ids
}

func newMemoryGraph(tasks ...models.Task) *memoryGraph {
	g := &memoryGraph{
		tasks:  make(map[int64]models.Task, len(tasks)),
		shares: make(map[int64][]int64),
	}
	for _, t := range tasks {
		g.tasks[t.ID] = t
	}
	return g
}

func (g *memoryGraph) share(taskID, userID int64) {
	g.shares[taskID] = append(g.shares[taskID], userID)
}

func (g *memoryGraph) Task(_ context.Context, id int64) (*models.Task, error) {
	t, ok := g.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (g *memoryGraph) Children(_ context.Context, parentIDs []int64) ([]models.Task, error) {
	parents := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = true
	}

	var children []models.Task
	for _, t := range g.tasks {
		if parents[t.ParentID] {
			children = append(children, t)
		}
	}
	return children, nil
}

func (g *memoryGraph) HasShare(_ context.Context, taskID, userID int64) (bool, error) {
	for _, id := range g.shares[taskID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func newTask(id, parentID, ownerID int64, name string) models.Task {
	return models.Task{ID: id, ParentID: parentID, UserID: ownerID, Name: name}
}

const (
	alice = int64(1)
	bob   = int64(2)
)

// tripGraph is the shared fixture: alice owns project "Trip" with a
// nested subtree plus an unrelated root task.
func tripGraph() *memoryGraph {
	return newMemoryGraph(
		newTask(1, 0, alice, "Trip"),
		newTask(2, 1, alice, "Pack"),
		newTask(3, 2, alice, "Socks"),
		newTask(4, 0, alice, "Unrelated"),
	)
}

func closureIDs(shared []SharedTask) []int64 {
	out := make([]int64, len(shared))
	for i, t := range shared {
		out[i] = t.ID
	}
	return out
}

func TestSharedClosure_ExpandsGrantToDescendants(t *testing.T) {
	g := tripGraph()
	r := New(g)
	ctx := context.Background()

	shared, err := r.SharedClosure(ctx, []models.Task{g.tasks[1]})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1, 2, 3}, closureIDs(shared))
}

func TestSharedClosure_ExcludesUnreachableTasks(t *testing.T) {
	g := tripGraph()
	r := New(g)
	ctx := context.Background()

	shared, err := r.SharedClosure(ctx, []models.Task{g.tasks[2]})
	require.NoError(t, err)

	// The grant on "Pack" reaches "Socks" but neither "Trip" above it
	// nor the unrelated root.
	assert.ElementsMatch(t, []int64{2, 3}, closureIDs(shared))
}

func TestSharedClosure_TagsTasksWithOriginGrant(t *testing.T) {
	g := tripGraph()
	r := New(g)
	ctx := context.Background()

	shared, err := r.SharedClosure(ctx, []models.Task{g.tasks[1]})
	require.NoError(t, err)

	for _, st := range shared {
		assert.Equal(t, int64(1), st.OriginID)
	}
}

func TestSharedClosure_OverlappingGrantsDeduplicated(t *testing.T) {
	g := tripGraph()
	r := New(g)
	ctx := context.Background()

	shared, err := r.SharedClosure(ctx, []models.Task{g.tasks[1], g.tasks[2]})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1, 2, 3}, closureIDs(shared))
}

func TestSharedClosure_EmptyGrants(t *testing.T) {
	r := New(tripGraph())

	shared, err := r.SharedClosure(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestSharedClosure_CycleTerminates(t *testing.T) {
	g := newMemoryGraph(
		newTask(1, 2, alice, "a"),
		newTask(2, 1, alice, "b"),
	)
	r := New(g)

	shared, err := r.SharedClosure(context.Background(), []models.Task{g.tasks[1]})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, closureIDs(shared))
}

func TestOriginRoot_WalksToTopAncestor(t *testing.T) {
	g := tripGraph()
	r := New(g)

	root, err := r.OriginRoot(context.Background(), g.tasks[3])
	require.NoError(t, err)
	assert.Equal(t, "Trip", root.Name)
}

func TestOriginRoot_DanglingParentPromotesOrphan(t *testing.T) {
	g := newMemoryGraph(newTask(5, 99, alice, "Orphan"))
	r := New(g)

	root, err := r.OriginRoot(context.Background(), g.tasks[5])
	require.NoError(t, err)
	assert.Equal(t, "Orphan", root.Name)
}

func TestOriginRoot_CycleTerminates(t *testing.T) {
	g := newMemoryGraph(
		newTask(1, 2, alice, "a"),
		newTask(2, 1, alice, "b"),
	)
	r := New(g)

	_, err := r.OriginRoot(context.Background(), g.tasks[1])
	require.NoError(t, err)
}

func TestCanModify_Owner(t *testing.T) {
	g := tripGraph()
	r := New(g)

	ok, err := r.CanModify(context.Background(), alice, g.tasks[1])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanModify_DirectShare(t *testing.T) {
	g := tripGraph()
	g.share(2, bob)
	r := New(g)

	ok, err := r.CanModify(context.Background(), bob, g.tasks[2])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanModify_InheritedShareFromAncestor(t *testing.T) {
	g := tripGraph()
	g.share(1, bob)
	r := New(g)

	// Bob's grant sits on "Trip"; "Socks" is two levels below.
	ok, err := r.CanModify(context.Background(), bob, g.tasks[3])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanModify_NoShareDenied(t *testing.T) {
	g := tripGraph()
	r := New(g)

	ok, err := r.CanModify(context.Background(), bob, g.tasks[3])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanModify_ShareOnSiblingDoesNotLeak(t *testing.T) {
	g := tripGraph()
	g.share(1, bob)
	r := New(g)

	// The unrelated root is outside the granted subtree.
	ok, err := r.CanModify(context.Background(), bob, g.tasks[4])
	require.NoError(t, err)
	assert.False(t, ok)
}
