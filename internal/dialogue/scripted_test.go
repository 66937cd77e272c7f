package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogbreaker/engine/internal/domain"
)

// fixed always returns i (clamped to n-1).
func fixed(i int) Chooser {
	return func(n int) int {
		if i >= n {
			return n - 1
		}
		return i
	}
}

func TestScripted_OpponentLineMatchesFog(t *testing.T) {
	ctx := context.Background()
	for _, fogType := range []domain.FogType{domain.FogFear, domain.FogObligation, domain.FogGuilt} {
		for i := 0; i < 3; i++ {
			s := NewScripted(fixed(i))
			line, err := s.OpponentLine(ctx, domain.OpponentPrompt{Level: domain.Level{FogType: fogType}})
			require.NoError(t, err)
			assert.Equal(t, opponentLines[domain.Tag(fogType)][i], line)
		}
	}
}

func TestScripted_ComboPicksTag(t *testing.T) {
	s := NewScripted(fixed(2))
	line, err := s.OpponentLine(context.Background(), domain.OpponentPrompt{Level: domain.Level{FogType: domain.FogCombo}})
	require.NoError(t, err)
	assert.Equal(t, opponentLines[domain.TagGuilt][2], line)
}

func TestScripted_AgentLine(t *testing.T) {
	s := NewScripted(fixed(0))
	ctx := context.Background()

	line, err := s.AgentLine(ctx, domain.AgentPrompt{OpponentLine: "你再这样我们就分手"})
	require.NoError(t, err)
	assert.Equal(t, boundaryLines[0]+verifyLines[0], line)

	line, err = s.AgentLine(ctx, domain.AgentPrompt{OpponentLine: "别人都能做到"})
	require.NoError(t, err)
	assert.Equal(t, boundaryLines[0]+actionLines[0], line)
}

func TestRandomChooser_InRange(t *testing.T) {
	c := RandomChooser()
	for i := 0; i < 100; i++ {
		v := c(3)
		assert.True(t, v >= 0 && v < 3)
	}
}
