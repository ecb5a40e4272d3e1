package egress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLValidator_BlocksLoopbackAndPrivate(t *testing.T) {
	v := NewURLValidator()
	for _, url := range []string{
		"http://localhost:8080/assign",
		"http://127.0.0.1/assign",
		"http://10.0.0.1/assign",
		"http://169.254.169.254/latest/meta-data",
		"file:///etc/passwd",
		"http://example.com/../../etc/passwd",
	} {
		assert.Error(t, v.Validate(url), url)
	}
}

func TestURLValidator_AllowsPublicHTTPS(t *testing.T) {
	v := NewURLValidator()
	assert.NoError(t, v.Validate("https://api.github.com/repos/acme/widgets/statuses/deadbeef"))
}
