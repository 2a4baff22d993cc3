package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ivrmap/internal/model"
)

func TestNormalize_RoleMapping(t *testing.T) {
	t.Parallel()

	lines := []Line{
		{Speaker: "assistant", Text: "Hello, I am calling to check your menu."},
		{Speaker: "user", Text: "Thank you for calling Acme. For sales, press 1."},
		{Speaker: "agent", Text: "Pressed 1."},
		{Speaker: "robot", Text: "One moment."},
		{Speaker: "customer", Text: "Sales department. Please hold."},
		{Speaker: "", Text: "Our office is closed."},
	}

	got := Normalize(lines)
	require.Len(t, got, 6)
	assert.Equal(t, model.RoleAgent, got[0].Role)
	assert.Equal(t, model.RoleMenu, got[1].Role)
	assert.Equal(t, model.RoleAgent, got[2].Role)
	assert.Equal(t, model.RoleAgent, got[3].Role)
	assert.Equal(t, model.RoleMenu, got[4].Role)
	assert.Equal(t, model.RoleMenu, got[5].Role)
}

func TestNormalize_DropsControlMarkers(t *testing.T) {
	t.Parallel()

	lines := []Line{
		{Speaker: "user", Text: "<waiting>"},
		{Speaker: "user", Text: "(silence)"},
		{Speaker: "user", Text: "[hold music]"},
		{Speaker: "user", Text: "waiting for response"},
		{Speaker: "user", Text: "For billing, press 3."},
		{Speaker: "agent", Text: ""},
		{Speaker: "user", Text: "   "},
	}

	got := Normalize(lines)
	require.Len(t, got, 1)
	assert.Equal(t, "For billing, press 3.", got[0].Text)
}

func TestNormalize_KeepsBracketedPressEvents(t *testing.T) {
	t.Parallel()

	got := Normalize([]Line{{Speaker: "agent", Text: "[Presses 1]"}})
	require.Len(t, got, 1)
	assert.Equal(t, model.RoleAgent, got[0].Role)
	assert.Equal(t, "[Presses 1]", got[0].Text)
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	t.Parallel()

	got := Normalize([]Line{{Speaker: "user", Text: "  For   sales,\tpress  1.  "}})
	require.Len(t, got, 1)
	assert.Equal(t, "For sales, press 1.", got[0].Text)
}

func TestParseConcatenated(t *testing.T) {
	t.Parallel()

	raw := "assistant: Hello.\n" +
		"user: Thank you for calling. For sales, press 1.\n" +
		"<waiting>\n" +
		"agent: Pressed 1.\n" +
		"user: Sales team. For quotes, press 1.\n"

	got := ParseConcatenated(raw)
	require.Len(t, got, 4)
	assert.Equal(t, model.RoleAgent, got[0].Role)
	assert.Equal(t, "Hello.", got[0].Text)
	assert.Equal(t, model.RoleMenu, got[1].Role)
	assert.Equal(t, model.RoleAgent, got[2].Role)
	assert.Equal(t, model.RoleMenu, got[3].Role)
	assert.Equal(t, "Sales team. For quotes, press 1.", got[3].Text)
}

func TestParseConcatenated_UntaggedLinesBelongToMenu(t *testing.T) {
	t.Parallel()

	raw := "Welcome to Acme Corp.\nHours: 9 to 5 weekdays.\n"
	got := ParseConcatenated(raw)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleMenu, got[0].Role)
	assert.Equal(t, "Welcome to Acme Corp.", got[0].Text)
	// "Hours:" is not a recognized role tag; the line is kept whole.
	assert.Equal(t, "Hours: 9 to 5 weekdays.", got[1].Text)
}

func TestParseConcatenated_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ParseConcatenated(""))
	assert.Empty(t, ParseConcatenated("\n\n  \n"))
}

func TestClean_NFCNormalization(t *testing.T) {
	t.Parallel()

	// "e" + combining acute accent composes to a single rune.
	composed := Clean("café")
	assert.Equal(t, "café", composed)
}
