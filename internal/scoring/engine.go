// Package scoring turns a battle transcript into a five-dimension score,
// a letter grade, tag counts and key moments.
package scoring

import (
	"regexp"

	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/fog"
)

// Dimension caps. Each dimension is clamped to [0, cap] after summing.
const (
	MaxBoundary    = 30
	MaxQuestioning = 20
	MaxStability   = 20
	MaxAction      = 15
	MaxEmpathy     = 15
)

// Per-line increments.
const (
	boundaryPoints    = 12
	questioningPoints = 8
	apologyPenalty    = -6
	stabilityPoints   = 7
	actionPoints      = 6
	empathyPoints     = 6
)

var (
	boundaryPattern = regexp.MustCompile(`不(行|能|可以)|拒绝|无法|边界|我需要`)
	questionMark    = regexp.MustCompile(`[?？]`)
	inquiryPattern  = regexp.MustCompile(`为什么|怎么|依据`)
	apologyPattern  = regexp.MustCompile(`对不起|抱歉|都怪我|是我的错`)
	actionPattern   = regexp.MustCompile(`一起|陪你|见面|验证|证明|计划|安排`)
	hostilePattern  = regexp.MustCompile(`脏话|滚|闭嘴|有病`)
)

// Evaluate scores a transcript. Only agent lines feed the dimensions and only
// opponent lines feed the tag counts.
func Evaluate(messages []domain.Message) domain.Scorecard {
	b := Breakdown(messages)
	total := b.Total()
	return domain.Scorecard{
		Breakdown:  b,
		Total:      total,
		Grade:      GradeFor(total),
		TagCounts:  fog.Count(messages),
		KeyMoments: KeyMoments(messages),
	}
}

// Breakdown accumulates every agent line and clamps each dimension once at the end.
// A transcript without agent lines scores zero everywhere.
func Breakdown(messages []domain.Message) domain.ScoreBreakdown {
	var raw domain.ScoreBreakdown
	for _, m := range messages {
		if m.Sender != domain.SenderAgent {
			continue
		}
		text := m.Text

		if boundaryPattern.MatchString(text) {
			raw.Boundary += boundaryPoints
		}
		if questionMark.MatchString(text) || inquiryPattern.MatchString(text) {
			raw.Questioning += questioningPoints
		}
		if apologyPattern.MatchString(text) {
			raw.Stability += apologyPenalty
		} else {
			raw.Stability += stabilityPoints
		}
		if actionPattern.MatchString(text) {
			raw.Action += actionPoints
		}
		if !hostilePattern.MatchString(text) {
			raw.Empathy += empathyPoints
		}
	}

	return domain.ScoreBreakdown{
		Boundary:    clamp(raw.Boundary, 0, MaxBoundary),
		Questioning: clamp(raw.Questioning, 0, MaxQuestioning),
		Stability:   clamp(raw.Stability, 0, MaxStability),
		Action:      clamp(raw.Action, 0, MaxAction),
		Empathy:     clamp(raw.Empathy, 0, MaxEmpathy),
	}
}

// GradeFor maps a total score to its letter grade.
func GradeFor(score int) domain.Grade {
	switch {
	case score >= 90:
		return domain.GradeS
	case score >= 75:
		return domain.GradeA
	case score >= 60:
		return domain.GradeB
	case score >= 40:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
