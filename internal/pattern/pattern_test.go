package pattern

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateEvidenceRunningMean(t *testing.T) {
	h := &Heuristic{}
	h.UpdateEvidence("e1", true)
	h.UpdateEvidence("e2", true)
	h.UpdateEvidence("e3", false)

	assert.Equal(t, 3, h.Evidence.SampleSize)
	assert.InDelta(t, 2.0/3.0, h.Evidence.SuccessRate, 1e-9)
	assert.InDelta(t, (2.0/3.0)*math.Sqrt(3), h.Confidence, 1e-9)
	assert.Equal(t, []string{"e1", "e2", "e3"}, h.Evidence.EpisodeIDs)
}

func TestOutcomeStatsSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, OutcomeStats{}.SuccessRate())
	assert.InDelta(t, 0.75, OutcomeStats{Successes: 3, Failures: 1}.SuccessRate(), 1e-9)
}
