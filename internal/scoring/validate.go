package scoring

import (
	"fmt"
	"strings"

	"github.com/fogbreaker/engine/internal/domain"
)

// Validate checks every dimension of b against its cap and returns an error
// listing all violations if any are found.
func Validate(b domain.ScoreBreakdown) error {
	type dimension struct {
		name  string
		value int
		max   int
	}
	dims := []dimension{
		{"boundary", b.Boundary, MaxBoundary},
		{"questioning", b.Questioning, MaxQuestioning},
		{"stability", b.Stability, MaxStability},
		{"action", b.Action, MaxAction},
		{"empathy", b.Empathy, MaxEmpathy},
	}

	var violations []string
	for _, d := range dims {
		if d.value < 0 || d.value > d.max {
			violations = append(violations, fmt.Sprintf("%s score %d out of range [0, %d]", d.name, d.value, d.max))
		}
	}

	if len(violations) > 0 {
		return domain.NewEngineError(domain.ErrScoreOutOfRange.Code, strings.Join(violations, "; "))
	}
	return nil
}
