// Package report synthesizes the learning report for a finished battle.
// All text comes from fixed templates; the output depends only on the inputs.
package report

import (
	"fmt"
	"strings"

	"github.com/fogbreaker/engine/internal/domain"
)

const (
	maxTechniques = 4
	maxScenarios  = 4
)

// Input is everything the synthesizer reads.
type Input struct {
	Messages  []domain.Message
	Breakdown domain.ScoreBreakdown
	TagCounts domain.TagCounts
	Total     int
}

type techniqueMeta struct {
	pattern  string
	risk     string
	strategy string
}

var techniqueTable = map[domain.Tag]techniqueMeta{
	domain.TagFear: {
		pattern:  "恐惧施压",
		risk:     "让你在害怕失去关系时快速让步，跳过理性判断。",
		strategy: "先命名对方情绪，再明确底线，最后把话题拉回可执行沟通。",
	},
	domain.TagObligation: {
		pattern:  "义务绑架",
		risk:     "把“爱”偷换成“必须满足要求”，逐步侵蚀你的边界。",
		strategy: "区分感情与义务，说明可接受范围，并提供替代方案。",
	},
	domain.TagGuilt: {
		pattern:  "愧疚循环",
		risk:     "让你持续背负责任，长期陷入补偿模式。",
		strategy: "先澄清事实边界，承认自己该负责部分，拒绝无限扩张责任。",
	},
}

var (
	genericScenario = domain.Scenario{
		Scene:               "恋爱关系中被要求“马上证明爱”",
		RecommendedResponse: "延迟反应，先确认事实，再说明你愿意沟通但不接受威胁。",
	}
	tagScenarios = map[domain.Tag]domain.Scenario{
		domain.TagFear: {
			Scene:               "对方用“分手/离开/出事”迫使你让步",
			RecommendedResponse: "表达关心但不接受恐吓式沟通，并改约冷静对话时间。",
		},
		domain.TagObligation: {
			Scene:               "被要求以爱之名满足消费或监控行为",
			RecommendedResponse: "说明“爱不是义务清单”，给出你可接受的边界条件。",
		},
		domain.TagGuilt: {
			Scene:               "对方不断翻旧账让你补偿",
			RecommendedResponse: "把问题拉回当前议题，限定一次只讨论一个具体问题。",
		},
	}
)

var learnedPoints = []string{
	"先识别套路，再做回应；先立边界，再谈感受。",
	"任何“立刻证明爱”的要求，都需要先回到事实与规则。",
	"把抽象情绪争执转成具体行动，能显著降低被操控概率。",
}

var nextActions = []string{
	"练习“30秒边界句”：我愿意沟通，但不会在威胁下做决定。",
	"每次冲突至少问出1个核验问题：你希望我具体做什么，标准是什么？",
	"为高压场景预备3个固定回复模板，避免临场被情绪带节奏。",
}

const (
	summaryTemplate  = "本关总分 %d/100。共识别到 %d 次情感勒索信号。你在%s方面表现较好，下一步重点强化%s。"
	strengthFallback = "基础沟通"
	weaknessFallback = "边界与验证动作的一致性"
)

// Build assembles the learning report.
func Build(in Input) domain.LearningReport {
	strengths, weaknesses := Assess(in.Breakdown)

	firstStrength := strengthFallback
	if len(strengths) > 0 {
		firstStrength = strengths[0]
	}
	firstWeakness := weaknessFallback
	if len(weaknesses) > 0 {
		firstWeakness = strings.Replace(weaknesses[0], "。", "", 1)
	}

	return domain.LearningReport{
		Summary:       fmt.Sprintf(summaryTemplate, in.Total, in.TagCounts.Total(), firstStrength, firstWeakness),
		Techniques:    Techniques(in.Messages),
		LearnedPoints: append([]string(nil), learnedPoints...),
		Scenarios:     Scenarios(in.TagCounts),
		Strengths:     strengths,
		Weaknesses:    weaknesses,
		NextActions:   append([]string(nil), nextActions...),
	}
}

// Techniques lists the tagged opponent lines in transcript order, one entry
// per distinct line text, capped at four.
func Techniques(messages []domain.Message) []domain.Technique {
	out := []domain.Technique{}
	seen := make(map[string]bool)
	for _, m := range messages {
		if len(out) == maxTechniques {
			break
		}
		if m.Sender != domain.SenderOpponent || m.Tag == domain.TagNone {
			continue
		}
		meta, ok := techniqueTable[m.Tag]
		if !ok || seen[m.Text] {
			continue
		}
		seen[m.Text] = true
		out = append(out, domain.Technique{
			Tag:             m.Tag,
			TriggerLine:     m.Text,
			PatternName:     meta.pattern,
			Risk:            meta.risk,
			CounterStrategy: meta.strategy,
		})
	}
	return out
}

// Scenarios returns the generic scenario followed by one per observed tag.
func Scenarios(counts domain.TagCounts) []domain.Scenario {
	out := []domain.Scenario{genericScenario}
	present := map[domain.Tag]bool{
		domain.TagFear:       counts.Fear > 0,
		domain.TagObligation: counts.Obligation > 0,
		domain.TagGuilt:      counts.Guilt > 0,
	}
	for _, tag := range domain.AllTags {
		if len(out) == maxScenarios {
			break
		}
		if present[tag] {
			out = append(out, tagScenarios[tag])
		}
	}
	return out
}
