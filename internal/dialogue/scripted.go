// Package dialogue produces opponent and agent lines for battles. Scripted
// lines serve fast mode and every fallback; Gemini and Ollama serve real mode.
package dialogue

import (
	"context"
	"math/rand/v2"
	"regexp"

	"github.com/fogbreaker/engine/internal/domain"
)

// Chooser returns an index in [0, n).
type Chooser func(n int) int

// RandomChooser picks uniformly.
func RandomChooser() Chooser {
	return func(n int) int { return rand.IntN(n) }
}

var opponentLines = map[domain.Tag][]string{
	domain.TagFear: {
		"你现在都这样了，那我们还有必要继续吗？",
		"你再不回应我，我就当你默认要结束了。",
		"你是不是根本不在乎这段关系了？",
	},
	domain.TagObligation: {
		"如果你真的重视我，这件事你应该主动做到吧？",
		"别人都能做到，你为什么不愿意？",
		"作为伴侣，这不是最基本的吗？",
	},
	domain.TagGuilt: {
		"我会这样难过，不就是因为你吗？",
		"我为你付出了这么多，你就这样对我？",
		"每次都让我失望，你让我怎么不伤心？",
	},
}

var (
	boundaryLines = []string{
		"我愿意沟通，但不会在威胁或指责下做决定。",
		"我理解你现在很难受，但我也需要被尊重和理性对话。",
		"我们可以讨论问题本身，而不是用关系来施压。",
	}
	verifyLines = []string{
		"你希望我具体做什么？标准是什么？",
		"我们先把事实说清楚，再决定下一步。",
		"如果要解决问题，我们约一个明确的沟通方案。",
	}
	actionLines = []string{
		"今晚我们各自冷静30分钟后再沟通。",
		"我可以一起梳理方案，但不会接受情绪勒索。",
		"我愿意继续这段关系，前提是彼此都守边界。",
	}
)

// Opponent lines about ending the relationship get a verification follow-up.
var breakupPattern = regexp.MustCompile(`分手|结束|离开|不爱`)

// Scripted picks canned lines. It never fails.
type Scripted struct {
	Choose Chooser
}

// NewScripted returns a Scripted generator; a nil chooser picks at random.
func NewScripted(choose Chooser) *Scripted {
	if choose == nil {
		choose = RandomChooser()
	}
	return &Scripted{Choose: choose}
}

func (s *Scripted) pick(lines []string) string {
	return lines[s.Choose(len(lines))]
}

// OpponentLine returns a canned line for the level's fog type. Combo levels
// pick a tactic per line.
func (s *Scripted) OpponentLine(ctx context.Context, p domain.OpponentPrompt) (string, error) {
	tag := domain.Tag(p.Level.FogType)
	if _, ok := opponentLines[tag]; !ok {
		tag = domain.AllTags[s.Choose(len(domain.AllTags))]
	}
	return s.pick(opponentLines[tag]), nil
}

// AgentLine combines a boundary statement with either a verification
// question or a concrete next step.
func (s *Scripted) AgentLine(ctx context.Context, p domain.AgentPrompt) (string, error) {
	boundary := s.pick(boundaryLines)
	follow := actionLines
	if breakupPattern.MatchString(p.OpponentLine) {
		follow = verifyLines
	}
	return boundary + s.pick(follow), nil
}
