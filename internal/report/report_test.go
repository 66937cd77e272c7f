package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogbreaker/engine/internal/domain"
)

func opp(text string, tag domain.Tag) domain.Message {
	return domain.Message{Sender: domain.SenderOpponent, Text: text, Tag: tag}
}

func TestTechniques_DedupAndCap(t *testing.T) {
	msgs := []domain.Message{
		opp("你再不回我就分手", domain.TagFear),
		{Sender: domain.SenderAgent, Text: "我需要时间", Tag: domain.TagFear},
		opp("你再不回我就分手", domain.TagFear),
		opp("今天天气不错", domain.TagNone),
		opp("男朋友应该买礼物", domain.TagObligation),
		opp("都是你害的", domain.TagGuilt),
		opp("你不爱我就离开", domain.TagFear),
		opp("我为你付出这么多", domain.TagGuilt),
	}

	got := Techniques(msgs)
	require.Len(t, got, maxTechniques)
	assert.Equal(t, "你再不回我就分手", got[0].TriggerLine)
	assert.Equal(t, "恐惧施压", got[0].PatternName)
	assert.Equal(t, "义务绑架", got[1].PatternName)
	assert.Equal(t, "愧疚循环", got[2].PatternName)
	assert.Equal(t, "你不爱我就离开", got[3].TriggerLine)
}

func TestTechniques_NoneTagged(t *testing.T) {
	got := Techniques([]domain.Message{opp("你好", domain.TagNone)})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAssess_Thresholds(t *testing.T) {
	strong := domain.ScoreBreakdown{Boundary: 20, Questioning: 12, Stability: 14, Action: 10, Empathy: 10}
	s, w := Assess(strong)
	assert.Len(t, s, 5)
	assert.Empty(t, w)

	weak := domain.ScoreBreakdown{Boundary: 17, Questioning: 9, Stability: 11, Action: 7, Empathy: 7}
	s, w = Assess(weak)
	assert.Empty(t, s)
	assert.Len(t, w, 5)
	assert.Equal(t, "边界语句不够直接，容易留下可被继续施压的空间", w[0])

	// Between the cutoffs a dimension is neither.
	mid := domain.ScoreBreakdown{Boundary: 18, Questioning: 10, Stability: 12, Action: 8, Empathy: 8}
	s, w = Assess(mid)
	assert.Empty(t, s)
	assert.Empty(t, w)
}

func TestScenarios(t *testing.T) {
	got := Scenarios(domain.TagCounts{})
	require.Len(t, got, 1)
	assert.Equal(t, genericScenario, got[0])

	got = Scenarios(domain.TagCounts{Fear: 1, Obligation: 2, Guilt: 3})
	require.Len(t, got, maxScenarios)
	assert.Equal(t, tagScenarios[domain.TagFear], got[1])
	assert.Equal(t, tagScenarios[domain.TagGuilt], got[3])

	got = Scenarios(domain.TagCounts{Guilt: 1})
	require.Len(t, got, 2)
	assert.Equal(t, tagScenarios[domain.TagGuilt], got[1])
}

func TestBuild_Summary(t *testing.T) {
	in := Input{
		Messages:  []domain.Message{opp("分手吧", domain.TagFear)},
		Breakdown: domain.ScoreBreakdown{Boundary: 24, Questioning: 0, Stability: 14, Action: 0, Empathy: 12},
		TagCounts: domain.TagCounts{Fear: 1},
		Total:     50,
	}

	r := Build(in)
	assert.Equal(t,
		"本关总分 50/100。共识别到 1 次情感勒索信号。你在边界表达清晰，能拒绝不合理要求方面表现较好，下一步重点强化追问不足，未充分拆解对方话术前提。",
		r.Summary)
	assert.Len(t, r.LearnedPoints, 3)
	assert.Len(t, r.NextActions, 3)
	assert.Len(t, r.Techniques, 1)
	assert.Len(t, r.Scenarios, 2)
}

func TestBuild_SummaryFallbacks(t *testing.T) {
	r := Build(Input{Breakdown: domain.ScoreBreakdown{Boundary: 19, Questioning: 11, Stability: 13, Action: 9, Empathy: 9}})
	assert.Contains(t, r.Summary, "你在基础沟通方面表现较好")
	assert.Contains(t, r.Summary, "下一步重点强化边界与验证动作的一致性。")
}

func TestBuild_CopiesFixedLists(t *testing.T) {
	r := Build(Input{})
	r.LearnedPoints[0] = "changed"
	assert.NotEqual(t, "changed", Build(Input{}).LearnedPoints[0])
}

func TestStudyNote(t *testing.T) {
	level := domain.Level{ID: 1, Title: "Fear威胁 - 分手要挟"}
	r := &domain.BattleReport{
		TotalScore: 72,
		TagCounts:  domain.TagCounts{Fear: 3},
		Learning: domain.LearningReport{
			Summary:       "总结",
			LearnedPoints: []string{"a", "b", "c", "d"},
		},
	}

	title, content := StudyNote(level, r)
	assert.Equal(t, NoteTitle, title)
	assert.Equal(t,
		"我刚完成了情感勒索测试第1关：Fear威胁 - 分手要挟。\n对手使用了3次情感勒索话术。\n我的表现得分72/100。\n我学到了：a；b；c。\n本轮总结：总结",
		content)
}
