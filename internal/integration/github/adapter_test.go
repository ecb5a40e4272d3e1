package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/control-plane/internal/bus"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/logger"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestAdapter_HandleWebhook_FiltersAndInitiates(t *testing.T) {
	log := logger.New("error", "text")
	b := bus.NewMemoryBus(log)

	a, err := New(Config{
		WebhookSecret: "s3cret",
		FilterCEL:     "event.type == 'push' && event.ref == 'refs/heads/main'",
		Workflow:      "ci",
	}, b, nil, log)
	require.NoError(t, err)

	received := make(chan []byte, 1)
	_, err = b.RegisterCallback(context.Background(), "default:actor:roster-admin:workflow-router", func(ctx context.Context, body []byte) error {
		received <- body
		return nil
	})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"ref":        "refs/heads/main",
		"after":      "deadbeef",
		"repository": map[string]any{"full_name": "acme/widgets"},
	})
	require.NoError(t, err)

	err = a.HandleWebhook(context.Background(), "push", sign("s3cret", body), body)
	require.NoError(t, err)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("expected initiate_workflow to be published")
	}
}

func TestAdapter_HandleWebhook_RejectsBadSignature(t *testing.T) {
	log := logger.New("error", "text")
	b := bus.NewMemoryBus(log)
	a, err := New(Config{WebhookSecret: "s3cret", FilterCEL: "true", Workflow: "ci"}, b, nil, log)
	require.NoError(t, err)

	body := []byte(`{"ref":"refs/heads/main"}`)
	err = a.HandleWebhook(context.Background(), "push", "sha256=deadbeef", body)
	assert.True(t, roerrors.Is(err, roerrors.KindWebhookMalformed))
}

func TestAdapter_HandleWebhook_FilterMismatchIsNoop(t *testing.T) {
	log := logger.New("error", "text")
	b := bus.NewMemoryBus(log)
	a, err := New(Config{
		WebhookSecret: "",
		FilterCEL:     "event.type == 'push' && event.ref == 'refs/heads/main'",
		Workflow:      "ci",
	}, b, nil, log)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"ref":        "refs/heads/feature-x",
		"after":      "deadbeef",
		"repository": map[string]any{"full_name": "acme/widgets"},
	})
	require.NoError(t, err)

	err = a.HandleWebhook(context.Background(), "push", "", body)
	require.NoError(t, err)
}
