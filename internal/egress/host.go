package egress

import (
	"net"
	"strings"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// HostValidator rejects hostnames that resolve (or are literally) inside
// the control plane's own network.
type HostValidator struct {
	blockedHostnames []string
	ipValidator      *IPValidator
}

func NewHostValidator() *HostValidator {
	return &HostValidator{
		blockedHostnames: []string{
			"localhost", "127.0.0.1", "::1", "0.0.0.0", "::",
			"::ffff:127.0.0.1", "[::1]", "[::ffff:127.0.0.1]",
		},
		ipValidator: NewIPValidator(),
	}
}

// Validate resolves hostname and rejects it if it is, or resolves to, an
// address inside a blocked range. A DNS lookup failure is not treated as
// unsafe: the subsequent dial will fail on its own.
func (v *HostValidator) Validate(hostname string) error {
	if hostname == "" {
		return roerrors.InvalidResource("egress: hostname is required")
	}

	normalized := strings.ToLower(strings.TrimSpace(hostname))
	for _, blocked := range v.blockedHostnames {
		if normalized == blocked {
			return roerrors.InvalidResource("egress: hostname '" + hostname + "' is blocked")
		}
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	return v.ipValidator.ValidateAll(ips)
}
