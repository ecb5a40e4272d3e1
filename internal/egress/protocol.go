package egress

import (
	"strings"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// ProtocolValidator only allows http/https egress.
type ProtocolValidator struct {
	allowed map[string]bool
}

func NewProtocolValidator() *ProtocolValidator {
	return &ProtocolValidator{allowed: map[string]bool{"http": true, "https": true}}
}

func (v *ProtocolValidator) Validate(scheme string) error {
	normalized := strings.ToLower(strings.TrimSpace(scheme))
	if normalized == "" {
		return roerrors.InvalidResource("egress: protocol scheme is required")
	}
	if !v.allowed[normalized] {
		return roerrors.InvalidResource("egress: protocol '" + scheme + "' is not allowed")
	}
	return nil
}
