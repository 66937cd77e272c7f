package scoring

import (
	"regexp"

	"github.com/fogbreaker/engine/internal/domain"
)

const (
	bestComment     = "你在压力点表达了边界并主动核验事实，没有被节奏拖着走。"
	worstComment    = "这里进入了自动道歉，建议先澄清事实再承担自己的部分。"
	fallbackComment = "你完成了基本对抗，下一步可提升边界清晰度与验证动作。"
)

var bestPattern = regexp.MustCompile(`不(行|能|可以)|拒绝|边界|需要.*空间`)

// KeyMoments extracts at most one best and one worst exchange. Only an agent
// line directly following an opponent line forms a pair.
func KeyMoments(messages []domain.Message) []domain.KeyMoment {
	var best, worst *domain.KeyMoment
	var order []*domain.KeyMoment

	for i := 1; i < len(messages) && (best == nil || worst == nil); i++ {
		prev, cur := messages[i-1], messages[i]
		if prev.Sender != domain.SenderOpponent || cur.Sender != domain.SenderAgent {
			continue
		}

		if best == nil && (bestPattern.MatchString(cur.Text) || questionMark.MatchString(cur.Text)) {
			best = &domain.KeyMoment{
				Kind:          domain.MomentBest,
				OpponentLine:  prev.Text,
				AgentResponse: cur.Text,
				Comment:       bestComment,
			}
			order = append(order, best)
		}
		if worst == nil && apologyPattern.MatchString(cur.Text) {
			worst = &domain.KeyMoment{
				Kind:          domain.MomentWorst,
				OpponentLine:  prev.Text,
				AgentResponse: cur.Text,
				Comment:       worstComment,
			}
			order = append(order, worst)
		}
	}

	if best == nil {
		if fb, ok := fallbackMoment(messages); ok {
			order = append([]*domain.KeyMoment{&fb}, order...)
		}
	}

	moments := make([]domain.KeyMoment, 0, len(order))
	for _, m := range order {
		moments = append(moments, *m)
	}
	return moments
}

// fallbackMoment pairs the first opponent line with the first agent line.
func fallbackMoment(messages []domain.Message) (domain.KeyMoment, bool) {
	var opponent, agent *domain.Message
	for i := range messages {
		switch messages[i].Sender {
		case domain.SenderOpponent:
			if opponent == nil {
				opponent = &messages[i]
			}
		case domain.SenderAgent:
			if agent == nil {
				agent = &messages[i]
			}
		}
	}
	if opponent == nil || agent == nil {
		return domain.KeyMoment{}, false
	}
	return domain.KeyMoment{
		Kind:          domain.MomentBest,
		OpponentLine:  opponent.Text,
		AgentResponse: agent.Text,
		Comment:       fallbackComment,
	}, true
}
