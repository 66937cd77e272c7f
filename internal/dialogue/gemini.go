package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/fogbreaker/engine/internal/domain"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the opponent model.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int32
}

// contentGenerator is the slice of *genai.Models the opponent needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini voices the opponent persona with a Gemini model. Any failure or
// empty reply falls back to a scripted line.
type Gemini struct {
	models   contentGenerator
	cfg      GeminiConfig
	fallback *Scripted
	logger   *zap.Logger
}

// NewGemini creates a Gemini client for the API key in cfg.
func NewGemini(ctx context.Context, cfg GeminiConfig, fallback *Scripted, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, cfg, fallback, logger), nil
}

func newGemini(models contentGenerator, cfg GeminiConfig, fallback *Scripted, logger *zap.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4500 * time.Millisecond
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 180
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewScripted(nil)
	}
	return &Gemini{models: models, cfg: cfg, fallback: fallback, logger: logger}
}

// OpponentLine asks the model for the persona's next line.
func (g *Gemini) OpponentLine(ctx context.Context, p domain.OpponentPrompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	temp := g.cfg.Temperature
	conf := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.Level.Opponent.SystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   g.cfg.MaxTokens,
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, opponentHistory(p), conf)
	if err == nil {
		if text := strings.TrimSpace(resp.Text()); text != "" {
			return text, nil
		}
		err = fmt.Errorf("empty reply")
	}
	g.logger.Warn("opponent generation failed, using scripted line",
		zap.Int("level_id", p.Level.ID),
		zap.String("model", g.cfg.Model),
		zap.Error(err),
	)
	return g.fallback.OpponentLine(ctx, p)
}

// opponentHistory maps the transcript onto chat roles from the opponent's
// point of view: the user's agent is the "user", the persona is the "model".
// The conversation always opens with a user turn.
func opponentHistory(p domain.OpponentPrompt) []*genai.Content {
	intro := p.Seed
	if intro == "" {
		intro = "关卡背景：" + p.Level.Background
	}
	out := []*genai.Content{genai.NewContentFromText(intro, genai.RoleUser)}
	for _, m := range p.Transcript {
		role := genai.Role(genai.RoleModel)
		if m.Sender == domain.SenderAgent {
			role = genai.RoleUser
		}
		out = append(out, genai.NewContentFromText(m.Text, role))
	}
	return out
}
