package turn

import (
	"testing"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineStartsListening(t *testing.T) {
	m := NewMachine()
	assert.True(t, m.Is(Listening))
}

func TestMachineFollowsHappyPath(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(UserTurn))
	require.NoError(t, m.Transition(ThinkingPause))
	require.NoError(t, m.Transition(AssistantTurn))
	require.NoError(t, m.Transition(Listening))
	assert.True(t, m.Is(Listening))
}

func TestMachineInterruptionPath(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(UserTurn))
	require.NoError(t, m.Transition(AssistantTurn))
	require.NoError(t, m.Transition(Interrupted))
	require.NoError(t, m.Transition(UserTurn))
	assert.True(t, m.Is(UserTurn))
}

func TestMachineRejectsIllegalEdge(t *testing.T) {
	m := NewMachine()
	err := m.Transition(AssistantTurn)
	require.Error(t, err)
	assert.True(t, m.Is(Listening))
}

func TestMachineEndedIsTerminal(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(Ended))
	assert.Error(t, m.Transition(Listening))
}

func TestMachineEndedReachableFromAnywhere(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(UserTurn))
	require.NoError(t, m.Transition(AssistantTurn))
	require.NoError(t, m.Transition(Ended))
}

func TestMachineTryTransitionReportsOutcome(t *testing.T) {
	m := NewMachine()
	assert.True(t, m.TryTransition(UserTurn))
	assert.False(t, m.TryTransition(Interrupted))
	assert.True(t, m.Is(UserTurn))
}

func TestClassifyPauseEndOfTurnAtDefaultThreshold(t *testing.T) {
	cfg := config.DefaultPipeline()
	assert.Equal(t, PauseWait, ClassifyPause(cfg, 400*time.Millisecond, false, false))
	assert.Equal(t, PauseEndOfTurn, ClassifyPause(cfg, 1500*time.Millisecond, false, false))
}

func TestClassifyPauseQuestionShortensThreshold(t *testing.T) {
	cfg := config.DefaultPipeline()
	assert.Equal(t, PauseEndOfTurn, ClassifyPause(cfg, 700*time.Millisecond, true, false))
	assert.Equal(t, PauseWait, ClassifyPause(cfg, 700*time.Millisecond, false, false))
}

func TestClassifyPauseThinkingHoldsTurnOpen(t *testing.T) {
	cfg := config.DefaultPipeline()
	assert.Equal(t, PauseThinking, ClassifyPause(cfg, 1000*time.Millisecond, false, true))
	// without the heuristic the same pause means nothing yet
	assert.Equal(t, PauseWait, ClassifyPause(cfg, 1000*time.Millisecond, false, false))
}
