// Package records implements the Workflow Record Store (component E):
// execution records keyed by (workflow, record-id), with the same CRUD
// shape as the Resource Registry but a record-specific mutation discipline.
package records

import (
	"fmt"
	"strings"

	"context"

	"github.com/google/uuid"

	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/kv"
	"github.com/rosterhq/control-plane/internal/logger"
	"github.com/rosterhq/control-plane/internal/resources"
)

// Store is the Workflow Record Store.
type Store struct {
	store kv.Store
	log   *logger.Logger
	root  string // "/records/workflows"
}

// New constructs a Store rooted at root (callers pass "/records/workflows";
// no default is applied).
func New(store kv.Store, log *logger.Logger, root string) *Store {
	return &Store{store: store, log: log, root: root}
}

func (s *Store) key(namespace, workflow, recordID string) string {
	if namespace == "" {
		namespace = "default"
	}
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimSuffix(s.root, "/"), namespace, workflow, recordID)
}

func (s *Store) prefix(namespace, workflow string) string {
	if namespace == "" {
		namespace = "default"
	}
	return fmt.Sprintf("%s/%s/%s/", strings.TrimSuffix(s.root, "/"), namespace, workflow)
}

// Create builds a new WorkflowRecord identified by id (the initiating
// WorkflowMessage's id, so router redeliveries are naturally idempotent)
// from spec (a frozen snapshot) and the supplied inputs, precomputing
// context["workflow.<input-name>"] for every declared input present in
// inputs, and writes it with PutIfAbsent.
func (s *Store) Create(ctx context.Context, id, namespace string, spec resources.WorkflowSpec, inputs map[string]string, workspace string) (*resources.WorkflowRecord, error) {
	if id == "" {
		id = uuid.NewString()
	}

	recordCtx := make(map[string]resources.TypedResult, len(spec.Inputs))
	for _, in := range spec.Inputs {
		if v, ok := inputs[in.Name]; ok {
			recordCtx["workflow."+in.Name] = resources.TypedResult{Type: in.Type, Value: v}
		}
	}

	rec := &resources.WorkflowRecord{
		ID:        id,
		Workflow:  spec.Name,
		Namespace: namespace,
		Spec:      spec,
		Workspace: workspace,
		Context:   recordCtx,
		Outputs:   make(map[string]resources.TypedResult),
		Errors:    make(map[string]string),
		RunStatus: make(map[string]resources.StepRunStatus),
	}

	encoded, err := resources.Encode(rec)
	if err != nil {
		return nil, roerrors.Wrap(roerrors.KindDeserialization, "encode record", err)
	}
	if err := s.store.PutIfAbsent(ctx, s.key(namespace, spec.Name, id), encoded); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns NotFound if absent.
func (s *Store) Get(ctx context.Context, namespace, workflow, recordID string) (*resources.WorkflowRecord, error) {
	raw, err := s.store.Get(ctx, s.key(namespace, workflow, recordID))
	if err != nil {
		return nil, err
	}
	var rec resources.WorkflowRecord
	if err := resources.Decode(raw, &rec); err != nil {
		return nil, roerrors.Wrap(roerrors.KindDeserialization, "decode record", err)
	}
	return &rec, nil
}

// List returns every record for workflow in namespace.
func (s *Store) List(ctx context.Context, namespace, workflow string) ([]*resources.WorkflowRecord, error) {
	kvs, err := s.store.GetPrefix(ctx, s.prefix(namespace, workflow))
	if err != nil {
		return nil, err
	}
	out := make([]*resources.WorkflowRecord, 0, len(kvs))
	for _, item := range kvs {
		var rec resources.WorkflowRecord
		if err := resources.Decode(item.Value, &rec); err != nil {
			s.log.Warn("skipping malformed workflow record", "key", item.Key, "error", err)
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Update persists a mutated record. record.Spec must never change across
// calls; callers read-modify-write Context/Outputs/Errors/RunStatus only.
func (s *Store) Update(ctx context.Context, rec *resources.WorkflowRecord) error {
	encoded, err := resources.Encode(rec)
	if err != nil {
		return roerrors.Wrap(roerrors.KindDeserialization, "encode record", err)
	}

	// Confirm the record still exists so a stale mutation of a deleted
	// record doesn't silently resurrect it under the caller's nose.
	if _, err := s.store.Get(ctx, s.key(rec.Namespace, rec.Workflow, rec.ID)); err != nil {
		return err
	}

	return s.store.Put(ctx, s.key(rec.Namespace, rec.Workflow, rec.ID), encoded)
}

// Delete removes a record. Operator-initiated; does not touch the
// WorkflowSpec it was created from.
func (s *Store) Delete(ctx context.Context, namespace, workflow, recordID string) error {
	return s.store.Delete(ctx, s.key(namespace, workflow, recordID))
}
