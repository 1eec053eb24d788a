package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigfolio/gigfolio/internal/pkg/env"
)

func TestVerificationLink_DefaultMatchesServerPort(t *testing.T) {
	env.Env = map[string]string{}
	t.Setenv("PUBLIC_BASE_URL", "")

	link := verificationLink("tok-123")
	assert.Equal(t, "http://localhost:4000/api/v1/connections/verify-email?token=tok-123", link)
}

func TestVerificationLink_UsesConfiguredBaseURL(t *testing.T) {
	env.Env = map[string]string{"PUBLIC_BASE_URL": "https://gigfolio.example.com"}

	link := verificationLink("tok-456")
	assert.Equal(t, "https://gigfolio.example.com/api/v1/connections/verify-email?token=tok-456", link)
}
