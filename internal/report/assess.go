package report

import "github.com/fogbreaker/engine/internal/domain"

// threshold pairs a dimension with its strength and weakness cutoffs.
type threshold struct {
	value         func(domain.ScoreBreakdown) int
	strengthMin   int
	strength      string
	weaknessUnder int
	weakness      string
}

// thresholds are checked in order: boundary, questioning, stability, action, empathy.
var thresholds = []threshold{
	{
		value:         func(b domain.ScoreBreakdown) int { return b.Boundary },
		strengthMin:   20,
		strength:      "边界表达清晰，能拒绝不合理要求",
		weaknessUnder: 18,
		weakness:      "边界语句不够直接，容易留下可被继续施压的空间",
	},
	{
		value:         func(b domain.ScoreBreakdown) int { return b.Questioning },
		strengthMin:   12,
		strength:      "会提问核验，不盲目接收情绪结论",
		weaknessUnder: 10,
		weakness:      "追问不足，未充分拆解对方话术前提",
	},
	{
		value:         func(b domain.ScoreBreakdown) int { return b.Stability },
		strengthMin:   14,
		strength:      "情绪稳定，未被对方情绪牵引失控",
		weaknessUnder: 12,
		weakness:      "出现自动道歉或自责，削弱了谈判位置",
	},
	{
		value:         func(b domain.ScoreBreakdown) int { return b.Action },
		strengthMin:   10,
		strength:      "能提出可执行验证动作，而非空口解释",
		weaknessUnder: 8,
		weakness:      "缺少可落地方案，容易陷入循环争论",
	},
	{
		value:         func(b domain.ScoreBreakdown) int { return b.Empathy },
		strengthMin:   10,
		strength:      "沟通克制，能兼顾坚定与礼貌",
		weaknessUnder: 8,
		weakness:      "语气管理仍需提升，容易引发对抗升级",
	},
}

// Assess returns the strengths and weaknesses for a breakdown.
func Assess(b domain.ScoreBreakdown) (strengths, weaknesses []string) {
	strengths = []string{}
	weaknesses = []string{}
	for _, th := range thresholds {
		v := th.value(b)
		if v >= th.strengthMin {
			strengths = append(strengths, th.strength)
		}
		if v < th.weaknessUnder {
			weaknesses = append(weaknesses, th.weakness)
		}
	}
	return strengths, weaknesses
}
