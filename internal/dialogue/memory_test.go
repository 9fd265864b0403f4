package dialogue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsRecentPairs(t *testing.T) {
	m := NewMemory(2)
	for i := 1; i <= 3; i++ {
		m.Append("user", fmt.Sprintf("pregunta %d", i))
		m.Append("assistant", fmt.Sprintf("respuesta %d", i))
	}

	msgs := m.Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, "pregunta 2", msgs[0].Content)
	assert.Equal(t, "respuesta 3", msgs[3].Content)
}

func TestMemoryDropsWholePairs(t *testing.T) {
	m := NewMemory(1)
	m.Append("user", "primera")
	m.Append("assistant", "parte uno")
	m.Append("assistant", "parte dos")
	m.Append("user", "segunda")

	msgs := m.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "segunda", msgs[0].Content)
}

func TestMemorySnapshotIsACopy(t *testing.T) {
	m := NewMemory(5)
	m.Append("user", "hola")
	snap := m.Snapshot()
	snap[0].Content = "mutado"
	assert.Equal(t, "hola", m.Snapshot()[0].Content)
}
