package dialogue

import (
	"context"

	"github.com/fogbreaker/engine/internal/domain"
)

// OpponentSource produces opponent lines.
type OpponentSource interface {
	OpponentLine(ctx context.Context, p domain.OpponentPrompt) (string, error)
}

// AgentSource produces agent lines.
type AgentSource interface {
	AgentLine(ctx context.Context, p domain.AgentPrompt) (string, error)
}

// Router sends fast-mode prompts to the scripted generator and real-mode
// prompts to the configured model backends. A nil backend means real mode
// uses scripted lines too.
type Router struct {
	Scripted *Scripted
	Opponent OpponentSource
	Agent    AgentSource
}

// OpponentLine implements battle.LineGenerator.
func (r *Router) OpponentLine(ctx context.Context, p domain.OpponentPrompt) (string, error) {
	if p.Mode == domain.ModeReal && r.Opponent != nil {
		return r.Opponent.OpponentLine(ctx, p)
	}
	return r.Scripted.OpponentLine(ctx, p)
}

// AgentLine implements battle.LineGenerator.
func (r *Router) AgentLine(ctx context.Context, p domain.AgentPrompt) (string, error) {
	if p.Mode == domain.ModeReal && r.Agent != nil {
		return r.Agent.AgentLine(ctx, p)
	}
	return r.Scripted.AgentLine(ctx, p)
}
