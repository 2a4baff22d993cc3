package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ivrmap/internal/config"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{}
	cfg.Discovery.MinCalls = 1
	cfg.Discovery.MaxCalls = 10
	t.Cleanup(func() { cfg = prev })
}

func TestParseBatchTargets(t *testing.T) {
	setTestConfig(t)

	targets, err := parseBatchTargets([]byte(`
targets:
  - phone: "+15551234567"
    max_calls: 5
  - phone: "+15559876543"
`))
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "+15551234567", targets[0].Phone)
	assert.Equal(t, 1, targets[0].MinCalls, "config default applied")
	assert.Equal(t, 5, targets[0].MaxCalls)
	assert.Equal(t, 10, targets[1].MaxCalls, "config default applied")
}

func TestParseBatchTargetsEmpty(t *testing.T) {
	setTestConfig(t)

	_, err := parseBatchTargets([]byte(`targets: []`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no targets")
}

func TestParseBatchTargetsMissingPhone(t *testing.T) {
	setTestConfig(t)

	_, err := parseBatchTargets([]byte(`
targets:
  - min_calls: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no phone")
}

func TestParseBatchTargetsDuplicate(t *testing.T) {
	setTestConfig(t)

	// Same number in two spellings is still a duplicate.
	_, err := parseBatchTargets([]byte(`
targets:
  - phone: "+1 (555) 123-4567"
  - phone: "15551234567"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestParseBatchTargetsBadYAML(t *testing.T) {
	setTestConfig(t)

	_, err := parseBatchTargets([]byte(`{broken`))
	require.Error(t, err)
}
