package stt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralita-ai/voice-orchestrator/pkg/wav"
)

func TestTranscribeSendsEnhancedFormContract(t *testing.T) {
	var form map[string]string
	var audioLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = map[string]string{}
		for k, vs := range r.MultipartForm.Value {
			form[k] = vs[0]
		}
		f, _, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		samples, _, err := wav.Decode(data)
		require.NoError(t, err)
		audioLen = len(samples)

		_ = json.NewEncoder(w).Encode(Transcription{Text: "hola", Confidence: 0.9, Language: "es"})
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).Transcribe(context.Background(), make([]int16, 320), "es", "call-1")
	require.NoError(t, err)
	assert.Equal(t, "hola", out.Text)

	assert.Equal(t, "call-1", form["conversation_id"])
	assert.Equal(t, "true", form["enable_correction"])
	assert.Equal(t, "true", form["enable_clarification"])
	assert.Equal(t, "es", form["language"])
	assert.Equal(t, 320, audioLen)
}

func TestTimeoutForScalesWithSegmentLength(t *testing.T) {
	base := 3 * time.Second
	maxSeg := 8 * time.Second

	assert.Equal(t, base, TimeoutFor(base, 8*time.Second, maxSeg))
	assert.Equal(t, base, TimeoutFor(base, 10*time.Second, maxSeg))
	assert.Equal(t, 1500*time.Millisecond, TimeoutFor(base, 4*time.Second, maxSeg))
}

func TestTimeoutForFloorsAtQuarterBase(t *testing.T) {
	base := 3 * time.Second
	maxSeg := 8 * time.Second

	// 300 ms of audio would scale to 112.5 ms, well below the floor
	assert.Equal(t, 750*time.Millisecond, TimeoutFor(base, 300*time.Millisecond, maxSeg))
}

func TestTimeoutForDegenerateMax(t *testing.T) {
	base := 3 * time.Second
	assert.Equal(t, base, TimeoutFor(base, time.Second, 0))
}
