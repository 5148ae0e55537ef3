package builtin

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsteps/assistant/internal/domain"
)

func TestReply_KeywordMatch(t *testing.T) {
	p := NewProvider()
	identity := domain.Identity{UserID: uuid.New(), Role: domain.RoleParent}

	reply, err := p.Reply(context.Background(), identity, nil, "My son struggles at bedtime")
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply, "routine") || strings.Contains(reply, "bedtime"))
}

func TestReply_DefaultAnswer(t *testing.T) {
	p := NewProvider()
	identity := domain.Identity{UserID: uuid.New(), Role: domain.RoleDoctor}

	reply, err := p.Reply(context.Background(), identity, nil, "xyzzy")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestReply_Deterministic(t *testing.T) {
	p := NewProvider()
	identity := domain.Identity{UserID: uuid.New(), Role: domain.RoleChild}

	a, err := p.Reply(context.Background(), identity, nil, "hello")
	require.NoError(t, err)
	b, err := p.Reply(context.Background(), identity, nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
