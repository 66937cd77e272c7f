// Package fog detects emotional-manipulation tactics in dialogue lines.
package fog

import (
	"strings"

	"github.com/fogbreaker/engine/internal/domain"
)

var (
	fearKeywords       = []string{"分手", "离开", "不爱", "结束", "别逼我", "不管我"}
	obligationKeywords = []string{"应该", "必须", "男朋友就", "女朋友就", "理所当然", "证明你爱我", "真爱就"}
	guiltKeywords      = []string{"都是你的错", "我这么", "我为你", "让我失望", "我好委屈", "欠我"}
)

// keywordSets is checked in order; the first set with a hit decides the tag.
var keywordSets = []struct {
	tag      domain.Tag
	keywords []string
}{
	{domain.TagFear, fearKeywords},
	{domain.TagObligation, obligationKeywords},
	{domain.TagGuilt, guiltKeywords},
}

// Classify returns the manipulation tag of text, or domain.TagNone.
// Fear wins over obligation, which wins over guilt.
func Classify(text string) domain.Tag {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return domain.TagNone
	}
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if strings.Contains(normalized, kw) {
				return set.tag
			}
		}
	}
	return domain.TagNone
}

// Count tallies the tags carried by opponent lines.
func Count(messages []domain.Message) domain.TagCounts {
	var counts domain.TagCounts
	for _, m := range messages {
		if m.Sender != domain.SenderOpponent {
			continue
		}
		switch m.Tag {
		case domain.TagFear:
			counts.Fear++
		case domain.TagObligation:
			counts.Obligation++
		case domain.TagGuilt:
			counts.Guilt++
		}
	}
	return counts
}
