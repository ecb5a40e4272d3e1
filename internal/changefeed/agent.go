package changefeed

import (
	"context"

	"github.com/rosterhq/control-plane/internal/registry"
	"github.com/rosterhq/control-plane/internal/resources"
)

// AgentLister adapts an Agent Registry's List into the Lister shape an
// Informer[resources.AgentResource] seeds its cache from.
func AgentLister(reg *registry.Registry[resources.AgentSpec, resources.AgentStatus]) Lister[resources.AgentResource] {
	return func(ctx context.Context) (map[string]resources.AgentResource, error) {
		list, err := reg.List(ctx, registry.DefaultNamespace)
		if err != nil {
			return nil, err
		}
		out := make(map[string]resources.AgentResource, len(list))
		for _, r := range list {
			out[r.Name] = *r
		}
		return out, nil
	}
}

// AgentDecoder decodes a raw ResourceEvent value into an AgentResource.
func AgentDecoder() Decoder[resources.AgentResource] {
	return func(raw []byte) (resources.AgentResource, error) {
		var res resources.AgentResource
		err := resources.Decode(raw, &res)
		return res, err
	}
}
