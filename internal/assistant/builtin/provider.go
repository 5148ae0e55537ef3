// Package builtin is the zero-dependency reply provider: deterministic,
// supportive answers used for demo environments and as the degradation path
// when an external model is unreachable.
package builtin

import (
	"context"
	"strings"

	"github.com/brightsteps/assistant/internal/assistant"
	"github.com/brightsteps/assistant/internal/domain"
)

// Provider implements assistant.Provider with canned responses.
type Provider struct{}

// NewProvider creates the builtin provider
func NewProvider() assistant.Provider {
	return &Provider{}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "builtin"
}

// IsConfigured always reports true; the builtin provider needs no credentials.
func (p *Provider) IsConfigured() bool {
	return true
}

type rule struct {
	keywords []string
	reply    string
}

var rules = []rule{
	{
		keywords: []string{"hello", "hi", "hey", "good morning", "good evening"},
		reply:    "Hello! I'm here to help with questions about therapy sessions, daily routines, and progress tracking. What's on your mind today?",
	},
	{
		keywords: []string{"sleep", "bedtime", "night"},
		reply:    "Sleep routines can be tricky. A consistent wind-down sequence — same order, same time each evening — often helps. Would you like me to suggest a simple bedtime checklist you can adapt?",
	},
	{
		keywords: []string{"task", "exercise", "homework", "activity"},
		reply:    "You can find assigned tasks and exercises in the Tasks section, sorted by due date. Short, regular practice works better than long occasional sessions. Is there a specific task you'd like help with?",
	},
	{
		keywords: []string{"progress", "report", "insight"},
		reply:    "Progress summaries are updated after each completed session and task. Trends matter more than single data points, so look at the weekly view first. Would you like me to explain what a specific chart shows?",
	},
	{
		keywords: []string{"appointment", "session", "schedule", "doctor"},
		reply:    "Upcoming sessions are listed in the calendar. If you need to reschedule, it's best to do it at least 24 hours in advance so the specialist can offer the slot to someone else.",
	},
	{
		keywords: []string{"thank", "thanks"},
		reply:    "You're welcome! Reach out any time — small consistent steps add up.",
	},
}

const defaultReply = "Thanks for sharing that. I can help with therapy tasks, routines, scheduling, and progress questions. Could you tell me a little more about what you'd like to work on?"

// Reply picks a canned answer from the first matching keyword rule.
func (p *Provider) Reply(ctx context.Context, identity domain.Identity, history []domain.Message, prompt string) (string, error) {
	lower := strings.ToLower(prompt)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.reply, nil
			}
		}
	}
	return defaultReply, nil
}
