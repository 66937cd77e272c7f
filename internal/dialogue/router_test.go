package dialogue

import (
	"context"
	"errors"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fogbreaker/engine/internal/domain"
)

type fakeModels struct {
	reply    string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

type fakeChat struct {
	chunks []string
	err    error
	req    *api.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.req = req
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := fn(api.ChatResponse{Message: api.Message{Role: "assistant", Content: c}}); err != nil {
			return err
		}
	}
	return nil
}

var level1 = domain.Level{
	ID:         1,
	Title:      "Fear威胁 - 分手要挟",
	FogType:    domain.FogFear,
	Background: "背景",
	Opponent:   domain.Persona{SystemPrompt: "你叫小美。"},
}

func TestGemini_OpponentLine(t *testing.T) {
	fm := &fakeModels{reply: "  你不回我就分手！ "}
	g := newGemini(fm, GeminiConfig{Temperature: 0.8}, NewScripted(fixed(0)), nil)

	p := domain.OpponentPrompt{
		Level: level1,
		Transcript: []domain.Message{
			{Sender: domain.SenderOpponent, Text: "开场"},
			{Sender: domain.SenderAgent, Text: "回应"},
		},
		Mode: domain.ModeReal,
	}
	line, err := g.OpponentLine(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "你不回我就分手！", line)

	assert.Equal(t, DefaultGeminiModel, fm.model)
	require.Len(t, fm.contents, 3)
	assert.Equal(t, "关卡背景：背景", fm.contents[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), string(fm.contents[1].Role))
	assert.Equal(t, string(genai.RoleUser), string(fm.contents[2].Role))
	assert.Equal(t, int32(180), fm.config.MaxOutputTokens)
	assert.Equal(t, "你叫小美。", fm.config.SystemInstruction.Parts[0].Text)
}

func TestGemini_FallsBackOnError(t *testing.T) {
	g := newGemini(&fakeModels{err: errors.New("quota")}, GeminiConfig{}, NewScripted(fixed(1)), nil)
	line, err := g.OpponentLine(context.Background(), domain.OpponentPrompt{Level: level1, Seed: "seed"})
	require.NoError(t, err)
	assert.Equal(t, opponentLines[domain.TagFear][1], line)
}

func TestGemini_FallsBackOnEmpty(t *testing.T) {
	g := newGemini(&fakeModels{reply: "   "}, GeminiConfig{}, NewScripted(fixed(0)), nil)
	line, err := g.OpponentLine(context.Background(), domain.OpponentPrompt{Level: level1})
	require.NoError(t, err)
	assert.Equal(t, opponentLines[domain.TagFear][0], line)
}

func TestOllama_AgentLine(t *testing.T) {
	fc := &fakeChat{chunks: []string{"我愿意沟通，", "但不接受威胁。"}}
	o := newOllama(fc, OllamaConfig{Model: "m"}, NewScripted(fixed(0)), nil)

	line, err := o.AgentLine(context.Background(), domain.AgentPrompt{Level: level1, OpponentLine: "分手吧"})
	require.NoError(t, err)
	assert.Equal(t, "我愿意沟通，但不接受威胁。", line)

	require.NotNil(t, fc.req)
	assert.Equal(t, "m", fc.req.Model)
	require.Len(t, fc.req.Messages, 2)
	assert.Contains(t, fc.req.Messages[0].Content, "关卡：Fear威胁 - 分手要挟")
	assert.Equal(t, "分手吧", fc.req.Messages[1].Content)
	require.NotNil(t, fc.req.Stream)
	assert.False(t, *fc.req.Stream)
}

func TestOllama_FallsBack(t *testing.T) {
	o := newOllama(&fakeChat{err: errors.New("connection refused")}, OllamaConfig{}, NewScripted(fixed(0)), nil)
	line, err := o.AgentLine(context.Background(), domain.AgentPrompt{Level: level1, OpponentLine: "分手吧"})
	require.NoError(t, err)
	assert.Equal(t, boundaryLines[0]+verifyLines[0], line)
}

func TestRouter(t *testing.T) {
	ctx := context.Background()
	fm := &fakeModels{reply: "模型台词"}
	fc := &fakeChat{chunks: []string{"模型回应"}}
	r := &Router{
		Scripted: NewScripted(fixed(0)),
		Opponent: newGemini(fm, GeminiConfig{}, nil, nil),
		Agent:    newOllama(fc, OllamaConfig{}, nil, nil),
	}

	line, err := r.OpponentLine(ctx, domain.OpponentPrompt{Level: level1, Mode: domain.ModeFast})
	require.NoError(t, err)
	assert.Equal(t, opponentLines[domain.TagFear][0], line)

	line, err = r.OpponentLine(ctx, domain.OpponentPrompt{Level: level1, Mode: domain.ModeReal})
	require.NoError(t, err)
	assert.Equal(t, "模型台词", line)

	line, err = r.AgentLine(ctx, domain.AgentPrompt{Level: level1, OpponentLine: "x", Mode: domain.ModeReal})
	require.NoError(t, err)
	assert.Equal(t, "模型回应", line)

	// No backends: real mode is scripted.
	bare := &Router{Scripted: NewScripted(fixed(0))}
	line, err = bare.AgentLine(ctx, domain.AgentPrompt{OpponentLine: "x", Mode: domain.ModeReal})
	require.NoError(t, err)
	assert.Equal(t, boundaryLines[0]+actionLines[0], line)
}
