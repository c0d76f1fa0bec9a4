package checkin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleTokens(t *testing.T) {
	tokens := NewConsoleTokens("secret", 12)
	ev := uuid.New()

	tok, err := tokens.Issue(ev, 3, baseTime)
	require.NoError(t, err)

	claims, err := tokens.Parse(tok, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ev, claims.EventID)
	assert.Equal(t, 3, claims.PinVersion)

	_, err = tokens.Parse(tok, baseTime.Add(13*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidConsoleToken, "expired")

	_, err = NewConsoleTokens("other", 12).Parse(tok, baseTime)
	assert.ErrorIs(t, err, ErrInvalidConsoleToken)

	_, err = tokens.Parse("garbage", baseTime)
	assert.ErrorIs(t, err, ErrInvalidConsoleToken)
}
