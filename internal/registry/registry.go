// Package registry implements the Resource Registry (component C): typed
// CRUD over the KV Store Adapter with namespaced keys, deserialization, and
// optimistic create.
package registry

import (
	"context"
	"fmt"
	"strings"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
)

const DefaultNamespace = "default"

// Key builds a resource key: /<root>/<kind-prefix>/<namespace>/<name>.
func Key(root, kindPrefix, namespace, name string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimSuffix(root, "/"), kindPrefix, namespace, name)
}

// Prefix builds the list/watch prefix for a kind within a namespace.
func Prefix(root, kindPrefix, namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s/%s/%s/", strings.TrimSuffix(root, "/"), kindPrefix, namespace)
}

// Registry is the generic typed CRUD Resource Registry for a single kind,
// parameterized by its Spec and Status types (see resources.Resource).
type Registry[S any, ST any] struct {
	store      kv.Store
	log        *logger.Logger
	root       string
	kindPrefix string
	apiVersion string
	kind       string
	initStatus func(S) ST
}

// New constructs a Registry for one resource kind.
func New[S any, ST any](store kv.Store, log *logger.Logger, root, kindPrefix, apiVersion, kind string, initStatus func(S) ST) *Registry[S, ST] {
	return &Registry[S, ST]{
		store:      store,
		log:        log,
		root:       root,
		kindPrefix: kindPrefix,
		apiVersion: apiVersion,
		kind:       kind,
		initStatus: initStatus,
	}
}

func (r *Registry[S, ST]) key(namespace, name string) string {
	return Key(r.root, r.kindPrefix, namespace, name)
}

// Create constructs Resource{spec, status=initial(spec)} and writes it with
// PutIfAbsent, returning AlreadyExists if the key is occupied.
func (r *Registry[S, ST]) Create(ctx context.Context, name, namespace string, spec S) (*resources.Resource[S, ST], error) {
	res := &resources.Resource[S, ST]{
		ResourceMeta: resources.ResourceMeta{
			ApiVersion: r.apiVersion,
			Kind:       r.kind,
			Namespace:  namespace,
			Name:       name,
		},
		Spec:   spec,
		Status: r.initStatus(spec),
	}

	encoded, err := resources.Encode(res)
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindDeserialization, "encode resource", err)
	}

	if err := r.store.PutIfAbsent(ctx, r.key(namespace, name), encoded); err != nil {
		return nil, err
	}
	return res, nil
}

// Get returns NotFound if absent.
func (r *Registry[S, ST]) Get(ctx context.Context, name, namespace string) (*resources.Resource[S, ST], error) {
	raw, err := r.store.Get(ctx, r.key(namespace, name))
	if err != nil {
		return nil, err
	}
	var res resources.Resource[S, ST]
	if err := resources.Decode(raw, &res); err != nil {
		return nil, roerrors.Wrap(roerrors.KindDeserialization, "decode resource "+name, err)
	}
	return &res, nil
}

// List performs a prefix scan; malformed entries are logged and skipped.
func (r *Registry[S, ST]) List(ctx context.Context, namespace string) ([]*resources.Resource[S, ST], error) {
	kvs, err := r.store.GetPrefix(ctx, Prefix(r.root, r.kindPrefix, namespace))
	if err != nil {
		return nil, err
	}
	out := make([]*resources.Resource[S, ST], 0, len(kvs))
	for _, item := range kvs {
		var res resources.Resource[S, ST]
		if err := resources.Decode(item.Value, &res); err != nil {
			r.log.Warn("skipping malformed resource", "kind", r.kind, "key", item.Key, "error", err)
			continue
		}
		out = append(out, &res)
	}
	return out, nil
}

// Update reads the current resource, replaces its spec, and re-writes it.
// Status is preserved. The write is a blind put: last-writer-wins for the
// spec, acceptable because the informer reconverges.
func (r *Registry[S, ST]) Update(ctx context.Context, name, namespace string, spec S) (*resources.Resource[S, ST], error) {
	current, err := r.Get(ctx, name, namespace)
	if err != nil {
		return nil, err
	}
	current.Spec = spec

	encoded, err := resources.Encode(current)
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindDeserialization, "encode resource", err)
	}
	if err := r.store.Put(ctx, r.key(namespace, name), encoded); err != nil {
		return nil, err
	}
	return current, nil
}

// UpdateStatus reads the current resource, replaces its status, and
// re-writes it. Spec is preserved. This is the only path that may mutate
// an AgentResource's status (Status Ingest, component J) — Create/Update
// above are spec-only from the Registry's perspective.
func (r *Registry[S, ST]) UpdateStatus(ctx context.Context, name, namespace string, status ST) (*resources.Resource[S, ST], error) {
	current, err := r.Get(ctx, name, namespace)
	if err != nil {
		return nil, err
	}
	current.Status = status

	encoded, err := resources.Encode(current)
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindDeserialization, "encode resource", err)
	}
	if err := r.store.Put(ctx, r.key(namespace, name), encoded); err != nil {
		return nil, err
	}
	return current, nil
}

// Delete removes the resource, if present.
func (r *Registry[S, ST]) Delete(ctx context.Context, name, namespace string) error {
	return r.store.Delete(ctx, r.key(namespace, name))
}
