package token

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretString(t *testing.T) {
	secret := NewSecretString("session-key")
	assert.Equal(t, []byte("session-key"), secret.Get())
}

func TestSecretString_Redacted(t *testing.T) {
	secret := NewSecretString("session-key")

	assert.Equal(t, "[redacted]", fmt.Sprint(secret))
	assert.Equal(t, "[redacted]", fmt.Sprintf("%#v", secret))

	var b bytes.Buffer
	slog.New(slog.NewJSONHandler(&b, nil)).Info("config", "jwt_secret", secret)
	assert.NotContains(t, b.String(), "session-key")
	assert.Contains(t, b.String(), `"jwt_secret":"[redacted]"`)
}

func TestSecretString_Weak(t *testing.T) {
	assert.True(t, NewSecretString("short").Weak())
	assert.False(t, NewSecretString(strings.Repeat("k", MinSecretLength)).Weak())
}
