package webhook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTargetURL_Accepted(t *testing.T) {
	valid := []string{
		"https://hooks.example.com/gigfolio",
		"http://callbacks.partner.io/v2/webhook",
		"https://example.com:443/path?x=1",
	}
	for _, target := range valid {
		assert.NoError(t, ValidateTargetURL(target), target)
	}
}

func TestValidateTargetURL_Rejected(t *testing.T) {
	invalid := []string{
		"",
		"not a url at all::",
		"/relative/path",
		"ftp://example.com/hook",
		"file:///etc/passwd",
		"https://",
		"http://localhost/hook",
		"http://localhost.localdomain/hook",
		"http://127.0.0.1:8080/hook",
		"http://10.1.2.3/hook",
		"http://172.16.0.9/hook",
		"http://192.168.1.1/hook",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/hook",
	}
	for _, target := range invalid {
		err := ValidateTargetURL(target)
		require.Error(t, err, target)

		var invalidTarget *ErrInvalidTarget
		assert.True(t, errors.As(err, &invalidTarget), "expected ErrInvalidTarget for %q", target)
	}
}

func TestDeliveryError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DeliveryError{URL: "https://example.com", Err: cause}
	assert.ErrorIs(t, err, cause)

	statusOnly := &DeliveryError{URL: "https://example.com", StatusCode: 503}
	assert.Contains(t, statusOnly.Error(), "503")
}
