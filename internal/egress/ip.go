// Package egress validates outbound HTTP destinations the control plane
// dials on an operator's behalf (Agent runtime assign/cancel calls,
// GitHub API calls), guarding against SSRF into the control plane's own
// network.
package egress

import (
	"net"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// IPValidator rejects IPs in loopback, private, link-local, multicast, or
// unspecified ranges.
type IPValidator struct{}

func NewIPValidator() *IPValidator { return &IPValidator{} }

func (v *IPValidator) Validate(ip net.IP) error {
	if ip == nil {
		return roerrors.InvalidResource("egress: ip address is nil")
	}
	switch {
	case ip.IsLoopback():
		return roerrors.InvalidResource("egress: " + ip.String() + " is a loopback address")
	case ip.IsPrivate():
		return roerrors.InvalidResource("egress: " + ip.String() + " is a private network address")
	case ip.IsLinkLocalUnicast():
		return roerrors.InvalidResource("egress: " + ip.String() + " is a link-local address")
	case ip.IsMulticast():
		return roerrors.InvalidResource("egress: " + ip.String() + " is a multicast address")
	case ip.IsUnspecified():
		return roerrors.InvalidResource("egress: " + ip.String() + " is unspecified")
	}
	return nil
}

// ValidateAll rejects on the first unsafe IP among ips.
func (v *IPValidator) ValidateAll(ips []net.IP) error {
	if len(ips) == 0 {
		return roerrors.InvalidResource("egress: no IP addresses to validate")
	}
	for _, ip := range ips {
		if err := v.Validate(ip); err != nil {
			return err
		}
	}
	return nil
}
