package egress

import (
	"fmt"
	"net/url"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
)

// URLValidator orchestrates protocol, host, and path validation for one
// outbound URL.
type URLValidator struct {
	protocol *ProtocolValidator
	host     *HostValidator
	path     *PathValidator
}

func NewURLValidator() *URLValidator {
	return &URLValidator{
		protocol: NewProtocolValidator(),
		host:     NewHostValidator(),
		path:     NewPathValidator(),
	}
}

// Validate parses urlStr and runs every check; any failure is wrapped as
// InvalidResource.
func (v *URLValidator) Validate(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return roerrors.Wrap(roerrors.KindInvalidResource, "egress: invalid URL", err)
	}

	if err := v.protocol.Validate(parsed.Scheme); err != nil {
		return err
	}
	if err := v.host.Validate(parsed.Hostname()); err != nil {
		return err
	}
	if err := v.path.Validate(parsed.Path); err != nil {
		return err
	}
	return v.validateQueryParams(parsed.Query())
}

func (v *URLValidator) validateQueryParams(params url.Values) error {
	for key, values := range params {
		for _, value := range values {
			if err := v.path.Validate(value); err != nil {
				return fmt.Errorf("egress: query parameter %q: %w", key, err)
			}
		}
	}
	return nil
}
