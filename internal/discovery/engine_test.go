package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ivrmap/internal/cost"
	"github.com/sells-group/ivrmap/internal/dialer"
	"github.com/sells-group/ivrmap/internal/enrich"
	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
	"github.com/sells-group/ivrmap/internal/store"
	"github.com/sells-group/ivrmap/pkg/bland"
)

// scriptedCall is one call's provider-side outcome.
type scriptedCall struct {
	placeErr   error
	details    bland.CallDetails
	transcript []model.Utterance
}

// fakeCaller plays back scripted calls in order and records the
// instructions each call was placed with.
type fakeCaller struct {
	script       []scriptedCall
	placed       int
	instructions []string
}

func (f *fakeCaller) PlaceCall(ctx context.Context, identity, instructions string) (dialer.CallHandle, error) {
	if f.placed >= len(f.script) {
		return dialer.CallHandle{}, errors.New("fakeCaller: script exhausted")
	}
	call := f.script[f.placed]
	f.placed++
	f.instructions = append(f.instructions, instructions)
	if call.placeErr != nil {
		return dialer.CallHandle{}, call.placeErr
	}
	return dialer.CallHandle{CallID: fmt.Sprintf("call-%d", f.placed)}, nil
}

func (f *fakeCaller) AwaitCompletion(ctx context.Context, handle dialer.CallHandle) (*bland.CallDetails, error) {
	d := f.script[f.placed-1].details
	if d.Status == "" {
		d.Status = "completed"
	}
	d.CallID = handle.CallID
	return &d, nil
}

func (f *fakeCaller) FetchTranscript(ctx context.Context, handle dialer.CallHandle, details *bland.CallDetails) ([]model.Utterance, error) {
	return f.script[f.placed-1].transcript, nil
}

// memStore is an in-memory Store for engine tests.
type memStore struct {
	sessions map[string]*model.Session
	saves    int
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*model.Session{}}
}

func (m *memStore) LoadSession(ctx context.Context, key string) (*model.Session, error) {
	return m.sessions[key], nil
}

func (m *memStore) SaveSession(ctx context.Context, session *model.Session) error {
	m.saves++
	m.sessions[session.Key()] = session
	return nil
}

func (m *memStore) ListSessions(ctx context.Context) ([]store.SessionSummary, error) {
	return nil, nil
}

func (m *memStore) DeleteSession(ctx context.Context, key string) error { return nil }
func (m *memStore) Migrate(ctx context.Context) error                   { return nil }
func (m *memStore) Close() error                                        { return nil }

func menuLine(text string) model.Utterance {
	return model.Utterance{Role: model.RoleMenu, Text: text}
}

func press(digit string) model.Utterance {
	return model.Utterance{Role: model.RoleAgent, Text: "Pressing " + digit + " now."}
}

const mainMenu = "For sales, press 1. For support, press 2."

func TestRunTwoCallScenario(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{
			details:    bland.CallDetails{Price: 0.10},
			transcript: []model.Utterance{menuLine(mainMenu)},
		},
		{
			details: bland.CallDetails{Price: 0.15},
			transcript: []model.Utterance{
				menuLine(mainMenu),
				press("1"),
				menuLine("For new orders, press 1."),
			},
		},
	}}
	st := newMemStore()
	engine := NewEngine(st, caller, nil, cost.NewCalculator(cost.DefaultRates()))

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 2,
	})
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, "+15551234567", session.Identity)
	require.Len(t, session.Calls, 2)
	assert.InDelta(t, 0.25, session.TotalCost, 0.0001)
	assert.Len(t, session.Snapshots, 2)

	// First call listens at the root, second targets branch 1.
	assert.Empty(t, session.Calls[0].TargetPath)
	assert.Equal(t, model.Path{"1"}, session.Calls[1].TargetPath)

	root := session.LastRoot
	require.NotNil(t, root)
	require.Len(t, root.Options, 2)
	assert.Equal(t, "1", root.FindOption("1").TargetNodeID, "branch 1 resolved")
	assert.Empty(t, root.FindOption("2").TargetNodeID, "branch 2 still pending")

	child := root.FindChild("1")
	require.NotNil(t, child)
	require.Len(t, child.Options, 1)
	assert.Equal(t, "1", child.Options[0].Digit)

	visited, pending := graph.Walk(root)
	assert.Equal(t, model.PathList{{"1"}}, visited)
	assert.Equal(t, model.PathList{{"2"}, {"1", "1"}}, pending)

	// Persisted once per successful iteration.
	assert.Equal(t, 2, st.saves)
	assert.NotNil(t, st.sessions["15551234567"])
}

func TestRunStopsWhenComplete(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{transcript: []model.Utterance{menuLine("Our office is closed. Goodbye.")}},
		{transcript: []model.Utterance{menuLine("Our office is closed. Goodbye.")}},
	}}
	engine := NewEngine(newMemStore(), caller, nil, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, caller.placed, "complete tree stops the run after min calls")
	assert.Len(t, session.Calls, 1)
	assert.True(t, graph.IsComplete(session.LastRoot))
}

func TestRunMaxCallsHardStop(t *testing.T) {
	// Every call discovers the same two-option menu and never descends,
	// so the tree stays incomplete.
	script := make([]scriptedCall, 4)
	for i := range script {
		script[i] = scriptedCall{transcript: []model.Utterance{menuLine(mainMenu)}}
	}
	caller := &fakeCaller{script: script}
	engine := NewEngine(newMemStore(), caller, nil, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, caller.placed)
	assert.Len(t, session.Calls, 2)
	assert.False(t, graph.IsComplete(session.LastRoot))
}

func TestRunAbortsOnCallFailureKeepingProgress(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{transcript: []model.Utterance{menuLine(mainMenu)}},
		{placeErr: dialer.ErrProviderCallFailed},
	}}
	st := newMemStore()
	engine := NewEngine(st, caller, nil, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 2,
		MaxCalls: 5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dialer.ErrProviderCallFailed)

	// The successful first iteration was persisted before the failure.
	require.NotNil(t, session)
	assert.Len(t, session.Calls, 1)
	assert.Equal(t, 1, st.saves)
	stored := st.sessions["15551234567"]
	require.NotNil(t, stored)
	assert.NotNil(t, stored.LastRoot)
}

func TestRunInvalidIdentity(t *testing.T) {
	engine := NewEngine(newMemStore(), &fakeCaller{}, nil, nil)

	_, err := engine.Run(context.Background(), RunOptions{Identity: "not a phone"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dialer.ErrInvalidIdentity)
}

func TestRunPriceEstimateFallback(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{
			details:    bland.CallDetails{Price: 0, CallLength: 2.0},
			transcript: []model.Utterance{menuLine("Goodbye.")},
		},
	}}
	engine := NewEngine(newMemStore(), caller, nil, cost.NewCalculator(cost.DefaultRates()))

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 1,
	})
	require.NoError(t, err)
	require.Len(t, session.Calls, 1)
	assert.True(t, session.Calls[0].PriceEstimated)
	assert.InDelta(t, 0.18, session.Calls[0].Price, 0.0001)
	assert.InDelta(t, 0.18, session.TotalCost, 0.0001)
}

func TestRunResumesFromStoredSession(t *testing.T) {
	// Stored tree: branch 1 explored, branch 2 pending.
	root := model.NewRoot()
	root.Options = []model.Option{
		{Digit: "1", Label: "Sales", TargetNodeID: "1"},
		{Digit: "2", Label: "Support"},
	}
	root.Children = []*model.Node{{
		ID: "1", ParentID: model.RootID, Path: model.Path{"1"},
		PromptText: "Sales desk.", Confidence: 0.7,
	}}

	st := newMemStore()
	st.sessions["15551234567"] = &model.Session{
		Identity:  "+15551234567",
		CreatedAt: time.Now().UTC(),
		LastRoot:  root,
	}

	caller := &fakeCaller{script: []scriptedCall{
		{transcript: []model.Utterance{
			menuLine(mainMenu),
			press("2"),
			menuLine("Please hold for the next available agent."),
		}},
	}}
	engine := NewEngine(st, caller, nil, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 1,
	})
	require.NoError(t, err)
	require.Len(t, session.Calls, 1)
	assert.Equal(t, model.Path{"2"}, session.Calls[0].TargetPath,
		"resumed run plans the stored tree's pending branch")
	assert.True(t, graph.IsComplete(session.LastRoot))
}

func TestRunOverridePath(t *testing.T) {
	root := model.NewRoot()
	root.Options = []model.Option{
		{Digit: "1", Label: "Sales"},
		{Digit: "2", Label: "Support"},
	}

	st := newMemStore()
	st.sessions["15551234567"] = &model.Session{Identity: "+15551234567", LastRoot: root}

	caller := &fakeCaller{script: []scriptedCall{
		{transcript: []model.Utterance{
			menuLine(mainMenu),
			press("2"),
			menuLine("Support line. Goodbye."),
		}},
	}}
	engine := NewEngine(st, caller, nil, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity:     "+15551234567",
		MinCalls:     1,
		MaxCalls:     1,
		OverridePath: model.Path{"2"},
	})
	require.NoError(t, err)
	require.Len(t, session.Calls, 1)
	assert.Equal(t, model.Path{"2"}, session.Calls[0].TargetPath,
		"override beats the planner's default pick")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(newMemStore(), &fakeCaller{}, nil, nil)
	_, err := engine.Run(ctx, RunOptions{Identity: "+15551234567", MinCalls: 1, MaxCalls: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// failingExtractor always errors; enrichment failures must be absorbed.
type failingExtractor struct{}

func (failingExtractor) Extract(ctx context.Context, utterances []model.Utterance, treeText string) (*enrich.Extraction, error) {
	return nil, errors.New("model unavailable")
}

// planExtractor returns a fixed plan for every call.
type planExtractor struct{}

func (planExtractor) Extract(ctx context.Context, utterances []model.Utterance, treeText string) (*enrich.Extraction, error) {
	return &enrich.Extraction{
		Nodes: []enrich.ExtractedNode{{ID: model.RootID, Type: "menu", Label: "Main menu", Confidence: 95}},
		Plan:  &enrich.Plan{Summary: "Heard the main menu.", NextPath: model.Path{"2"}},
	}, nil
}

func TestRunEnrichmentFailureAbsorbed(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{transcript: []model.Utterance{menuLine("Goodbye.")}},
	}}
	engine := NewEngine(newMemStore(), caller, failingExtractor{}, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 1,
	})
	require.NoError(t, err, "extraction failure must not abort the run")
	assert.Len(t, session.Calls, 1)
}

func TestRunEnrichmentAttachesPlan(t *testing.T) {
	caller := &fakeCaller{script: []scriptedCall{
		{transcript: []model.Utterance{menuLine(mainMenu)}},
	}}
	engine := NewEngine(newMemStore(), caller, planExtractor{}, nil)

	session, err := engine.Run(context.Background(), RunOptions{
		Identity: "+15551234567",
		MinCalls: 1,
		MaxCalls: 1,
	})
	require.NoError(t, err)
	require.Len(t, session.Calls, 1)
	assert.Equal(t, "Heard the main menu.", session.Calls[0].PlanSummary)
	assert.Equal(t, model.Path{"2"}, session.Calls[0].PlanNextPath)
	assert.InDelta(t, 0.95, session.LastRoot.Confidence, 0.0001,
		"extraction raises node confidence")
}

func TestBuildInstructions(t *testing.T) {
	root := model.NewRoot()
	root.Options = []model.Option{{Digit: "1", Label: "Sales", TargetNodeID: "1"}, {Digit: "2", Label: "Support"}}
	root.Children = []*model.Node{{ID: "1", ParentID: model.RootID, PromptText: "Sales."}}
	visited, pending := graph.Walk(root)

	text := BuildInstructions(model.Path{"1", "3"}, root, visited, pending)
	assert.Contains(t, text, "press 1")
	assert.Contains(t, text, "press 3")
	assert.Contains(t, text, "Pressing 1 now.")
	assert.Contains(t, text, "still unexplored")
	assert.Contains(t, text, "Sales")

	listen := BuildInstructions(nil, nil, nil, nil)
	assert.Contains(t, listen, "without pressing anything")
	assert.NotContains(t, listen, "Navigation steps")
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, model.CallStatusCompleted, mapStatus("completed"))
	assert.Equal(t, model.CallStatusFailed, mapStatus("failed"))
	assert.Equal(t, model.CallStatusCanceled, mapStatus("canceled"))
	assert.Equal(t, model.CallStatusCanceled, mapStatus("cancelled"))
	assert.Equal(t, model.CallStatusQueued, mapStatus("queued"))
	assert.Equal(t, model.CallStatus("ringing"), mapStatus("ringing"))
}
