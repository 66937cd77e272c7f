package report

import (
	"fmt"
	"strings"

	"github.com/fogbreaker/engine/internal/domain"
)

// NoteTitle is the title of every post-battle study note.
const NoteTitle = "情感迷雾破解者 - 学习笔记"

const noteTemplate = "我刚完成了情感勒索测试第%d关：%s。\n对手使用了%d次情感勒索话术。\n我的表现得分%d/100。\n我学到了：%s。\n本轮总结：%s"

// StudyNote renders the note appended to the user's agent memory after a
// battle settles.
func StudyNote(level domain.Level, r *domain.BattleReport) (title, content string) {
	points := r.Learning.LearnedPoints
	if len(points) > 3 {
		points = points[:3]
	}
	content = fmt.Sprintf(noteTemplate,
		level.ID,
		level.Title,
		r.TagCounts.Total(),
		r.TotalScore,
		strings.Join(points, "；"),
		r.Learning.Summary,
	)
	return NoteTitle, content
}
