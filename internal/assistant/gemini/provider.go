package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/domain"
)

const systemPrompt = "You are a supportive assistant for a pediatric therapy and education platform. " +
	"You help parents, children, doctors and school staff with questions about therapy tasks, routines, " +
	"scheduling and progress. Be warm, concrete and brief. Never give medical diagnoses; suggest " +
	"contacting the child's specialist for clinical questions."

type Provider struct {
	apiKey string
	model  string
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *Provider) defaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-1.5-flash"
}

// Reply sends the conversation history plus the new prompt to Gemini.
func (p *Provider) Reply(ctx context.Context, identity domain.Identity, history []domain.Message, prompt string) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.defaultModel())
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt + " The user is chatting as role: " + string(identity.Role) + ".")},
	}

	chat := model.StartChat()
	for _, m := range history {
		role := "user"
		if m.Sender == domain.SenderAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var output string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output += string(text)
		}
	}

	return output, nil
}
