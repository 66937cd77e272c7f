package dialogue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/fogbreaker/engine/internal/domain"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "qwen2.5:7b"

// OllamaConfig configures the user's local agent model.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

type chatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Ollama answers opponent lines as the user's agent through a local Ollama
// server. Any failure or empty reply falls back to a scripted line.
type Ollama struct {
	client   chatClient
	cfg      OllamaConfig
	fallback *Scripted
	logger   *zap.Logger
}

// NewOllama connects to cfg.Host, or to OLLAMA_HOST when Host is empty.
func NewOllama(cfg OllamaConfig, fallback *Scripted, logger *zap.Logger) (*Ollama, error) {
	var (
		client *api.Client
		err    error
	)
	if cfg.Host != "" {
		u, perr := url.Parse(cfg.Host)
		if perr != nil {
			return nil, fmt.Errorf("parse ollama host: %w", perr)
		}
		client = api.NewClient(u, http.DefaultClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	}
	return newOllama(client, cfg, fallback, logger), nil
}

func newOllama(client chatClient, cfg OllamaConfig, fallback *Scripted, logger *zap.Logger) *Ollama {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = NewScripted(nil)
	}
	return &Ollama{client: client, cfg: cfg, fallback: fallback, logger: logger}
}

const agentSystemTemplate = "你正在进行情感勒索识别训练。\n关卡：%s\n目标：保持情绪稳定、表达边界、提出验证问题和可执行方案。\n限制：不超过55字。"

// AgentLine asks the local model to answer the opponent line.
func (o *Ollama) AgentLine(ctx context.Context, p domain.AgentPrompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	stream := false
	req := &api.ChatRequest{
		Model: o.cfg.Model,
		Messages: []api.Message{
			{Role: "system", Content: fmt.Sprintf(agentSystemTemplate, p.Level.Title)},
			{Role: "user", Content: p.OpponentLine},
		},
		Stream: &stream,
	}

	var reply strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err == nil {
		if text := strings.TrimSpace(reply.String()); text != "" {
			return text, nil
		}
		err = fmt.Errorf("empty reply")
	}
	o.logger.Warn("agent generation failed, using scripted line",
		zap.String("user_id", p.UserID),
		zap.String("model", o.cfg.Model),
		zap.Error(err),
	)
	return o.fallback.AgentLine(ctx, p)
}
