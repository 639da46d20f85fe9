package smartrouter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseRecordsSuccessAndDuration(t *testing.T) {
	tc := NewTraceCapture()
	err := tc.Phase("interpretation", func(h *phaseHandle) error {
		time.Sleep(time.Millisecond)
		h.RecordData("domains", []string{"weather"})
		return nil
	})
	require.NoError(t, err)

	traces := tc.Traces()
	require.Len(t, traces, 1)
	assert.Equal(t, "interpretation", traces[0].Phase)
	assert.True(t, traces[0].Success)
	assert.Greater(t, traces[0].Duration, time.Duration(0))
	assert.Equal(t, []string{"weather"}, traces[0].Data["domains"])
}

func TestPhaseRecordsFailure(t *testing.T) {
	tc := NewTraceCapture()
	boom := errors.New("boom")
	err := tc.Phase("routing", func(h *phaseHandle) error {
		return boom
	})
	assert.Equal(t, boom, err)

	traces := tc.Traces()
	require.Len(t, traces, 1)
	assert.False(t, traces[0].Success)
	assert.Equal(t, "boom", traces[0].Error)
}

func TestBeginEndManualPair(t *testing.T) {
	tc := NewTraceCapture()
	h := tc.Begin("execution")
	h.RecordData("agent_count", 3)
	tc.End(h, nil)

	traces := tc.Traces()
	require.Len(t, traces, 1)
	assert.Equal(t, "execution", traces[0].Phase)
	assert.Equal(t, 3, traces[0].Data["agent_count"])
}

func TestRecordAgentsUsedDeduplicates(t *testing.T) {
	tc := NewTraceCapture()
	tc.RecordAgentUsed("weather-agent")
	tc.RecordAgentsUsed([]string{"weather-agent", "news-agent", ""})

	agents := tc.AgentsUsed()
	assert.Len(t, agents, 2)
	assert.Contains(t, agents, "weather-agent")
	assert.Contains(t, agents, "news-agent")
}

func TestHasFailuresReflectsAnyFailedPhase(t *testing.T) {
	tc := NewTraceCapture()
	assert.False(t, tc.HasFailures())

	_ = tc.Phase("p1", func(h *phaseHandle) error { return nil })
	assert.False(t, tc.HasFailures())

	_ = tc.Phase("p2", func(h *phaseHandle) error { return errors.New("fail") })
	assert.True(t, tc.HasFailures())
}

func TestTotalTimeSumsAllPhases(t *testing.T) {
	tc := NewTraceCapture()
	_ = tc.Phase("p1", func(h *phaseHandle) error { time.Sleep(time.Millisecond); return nil })
	_ = tc.Phase("p2", func(h *phaseHandle) error { time.Sleep(time.Millisecond); return nil })

	assert.GreaterOrEqual(t, tc.TotalTime(), 2*time.Millisecond)
}
