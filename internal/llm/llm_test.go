package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"resumable-chat/backend/internal/models"
	"resumable-chat/backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"gorm.io/datatypes"
)

func textMsg(role, text string) models.Message {
	return models.Message{Role: role, Parts: datatypes.NewJSONSlice([]models.Part{{Type: models.PartText, Text: text}})}
}

func TestEchoStreamsWords(t *testing.T) {
	var b strings.Builder
	var n int
	err := NewEcho(0).Stream(context.Background(), Request{Messages: []models.Message{
		textMsg(models.RoleUser, "first"),
		textMsg(models.RoleAssistant, "reply"),
		textMsg(models.RoleUser, "hello there world"),
	}}, func(s string) error {
		n++
		b.WriteString(s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hello there world", b.String())
}

func TestEchoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewEcho(time.Second).Stream(ctx, Request{Messages: []models.Message{textMsg(models.RoleUser, "a b")}}, func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToContent(t *testing.T) {
	msgs := []models.Message{
		textMsg(models.RoleUser, "hi"),
		{Role: models.RoleUser, Parts: datatypes.NewJSONSlice([]models.Part{{Type: models.PartImage, URL: "https://x/y.png"}})},
		textMsg(models.RoleAssistant, "hello"),
	}
	out := toContent(Request{System: "be nice", Messages: msgs})
	require.Len(t, out, 4)
	assert.Equal(t, schema.ChatMessageTypeSystem, out[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, out[1].Role)
	assert.Equal(t, llms.ImageURLContent{URL: "https://x/y.png"}, out[2].Parts[0])
	assert.Equal(t, schema.ChatMessageTypeAI, out[3].Role)
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Load()
	cfg.LLM.Provider = "echo"
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name())

	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = ""
	_, err = New(cfg)
	assert.Error(t, err)

	cfg.LLM.Provider = "mystery"
	_, err = New(cfg)
	assert.Error(t, err)
}
