package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
)

// twoBranchTree builds: root with option 1 (pending) and option 2 (explored
// into a child whose option 1 is pending).
func twoBranchTree() *model.Node {
	root := model.NewRoot()
	root.Options = []model.Option{
		{Digit: "1", Label: "sales"},
		{Digit: "2", Label: "support", TargetNodeID: "2"},
	}
	root.Children = []*model.Node{{
		ID:       "2",
		ParentID: model.RootID,
		Path:     model.Path{"2"},
		Options:  []model.Option{{Digit: "1", Label: "billing"}},
	}}
	return root
}

func TestNextPathPrefersShallowPending(t *testing.T) {
	t.Parallel()

	root := twoBranchTree()
	visited, pending := graph.Walk(root)
	require.Equal(t, model.PathList{{"2"}}, visited)

	got := NextPath(root, visited, pending, nil, nil)
	assert.Equal(t, model.Path{"1"}, got, "pending [1] comes before [2 1]")
}

func TestNextPathDescendsResolvedBranches(t *testing.T) {
	t.Parallel()

	root := twoBranchTree()
	// Resolve option 1 to a childless leaf; only [2 1] remains.
	root.Options[0].TargetNodeID = "1"
	root.Children = append(root.Children, &model.Node{
		ID: "1", ParentID: model.RootID, Path: model.Path{"1"},
	})

	visited, pending := graph.Walk(root)
	got := NextPath(root, visited, pending, nil, nil)
	assert.Equal(t, model.Path{"2", "1"}, got)
}

func TestNextPathNeverReturnsVisited(t *testing.T) {
	t.Parallel()

	root := twoBranchTree()
	visited, pending := graph.Walk(root)

	got := NextPath(root, visited, pending, nil, nil)
	assert.False(t, visited.Contains(got))

	// Even when override and recent history point at a visited path.
	got = NextPath(root, visited, pending, []model.Path{{"2"}}, model.Path{"2"})
	assert.Equal(t, model.Path{"1"}, got)
}

func TestNextPathOverrideWins(t *testing.T) {
	t.Parallel()

	root := twoBranchTree()
	visited, pending := graph.Walk(root)

	got := NextPath(root, visited, pending, nil, model.Path{"2", "1"})
	assert.Equal(t, model.Path{"2", "1"}, got)

	// An override that is not pending is ignored.
	got = NextPath(root, visited, pending, nil, model.Path{"9"})
	assert.Equal(t, model.Path{"1"}, got)
}

func TestNextPathKeepsMomentum(t *testing.T) {
	t.Parallel()

	root := twoBranchTree()
	visited, pending := graph.Walk(root)

	// The most recent plan still pending beats the depth-first default.
	recent := []model.Path{{"2", "1"}, {"1"}}
	got := NextPath(root, visited, pending, recent, nil)
	assert.Equal(t, model.Path{"2", "1"}, got)
}

func TestNextPathDeterministic(t *testing.T) {
	t.Parallel()

	root := twoBranchTree()
	visited, pending := graph.Walk(root)

	first := NextPath(root, visited, pending, nil, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NextPath(root, visited, pending, nil, nil))
	}
}

func TestNextPathDigitOrdering(t *testing.T) {
	t.Parallel()

	root := model.NewRoot()
	root.Options = []model.Option{
		{Digit: "#", Label: "repeat"},
		{Digit: "10", Label: "directory"},
		{Digit: "2", Label: "support"},
	}
	visited, pending := graph.Walk(root)

	got := NextPath(root, visited, pending, nil, nil)
	assert.Equal(t, model.Path{"2"}, got, "numeric digits sort before non-numeric, 2 before 10")
}

func TestNextPathExhausted(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NextPath(nil, nil, nil, nil, nil))

	root := model.NewRoot()
	root.Options = []model.Option{{Digit: "1", Label: "sales", TargetNodeID: "1"}}
	root.Children = []*model.Node{{ID: "1", ParentID: model.RootID, Path: model.Path{"1"}}}
	visited, pending := graph.Walk(root)
	require.Empty(t, pending)

	assert.Nil(t, NextPath(root, visited, pending, nil, nil))
}
