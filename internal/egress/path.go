package egress

import (
	"strings"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// PathValidator rejects URL paths that look like local file access or
// path traversal attempts.
type PathValidator struct {
	blockedPatterns []string
}

func NewPathValidator() *PathValidator {
	return &PathValidator{
		blockedPatterns: []string{
			"file://", "../", "..\\", "/etc/", "/proc/", "/sys/",
			"c:/", "c:\\", "\\\\.\\pipe\\",
		},
	}
}

func (v *PathValidator) Validate(urlPath string) error {
	if urlPath == "" {
		return nil
	}
	normalized := strings.ToLower(urlPath)

	for _, pattern := range v.blockedPatterns {
		if strings.Contains(normalized, pattern) {
			return roerrors.InvalidResource("egress: path contains blocked pattern '" + pattern + "'")
		}
	}
	if v.containsEncodedAttack(normalized) {
		return roerrors.InvalidResource("egress: path contains encoded traversal pattern")
	}
	return nil
}

func (v *PathValidator) containsEncodedAttack(path string) bool {
	for _, pattern := range []string{"%2e%2e/", "%2e%2e%2f", "..%2f", "%2e%2e\\", "%2e%2e%5c", "..%5c"} {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
