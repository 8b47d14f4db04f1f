package dispatch_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-gcm-service/pkg/gcm"
)

func TestRequest_DecodeQueuedJob(t *testing.T) {
	payload := `{
		"recipient_id": "urn:sm:user:user-123",
		"notification": {"title": "Hi", "body": "there", "icon": null, "color": "#ff0000"},
		"data": {"order": 42},
		"collapse_key": "orders",
		"time_to_live": 60
	}`

	var req dispatch.Request
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	u, err := req.Recipient()
	require.NoError(t, err)
	assert.Equal(t, "urn:sm:user:user-123", u.String())

	assert.Equal(t, "Hi", req.Notification.Title)
	assert.Equal(t, "#ff0000", req.Notification.Color)
	assert.Empty(t, req.Notification.Icon)
	require.NotNil(t, req.TimeToLive)
	assert.Equal(t, 60, *req.TimeToLive)
}

func TestRequest_InvalidRecipient(t *testing.T) {
	req := dispatch.Request{RecipientID: "not-a-urn"}
	_, err := req.Recipient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient_id")
}

func TestRequest_Message(t *testing.T) {
	ttl := 30
	req := &dispatch.Request{
		Notification: gcm.Notification{Title: "T"},
		Data:         map[string]any{"k": "v"},
		CollapseKey:  "c",
		TimeToLive:   &ttl,
		DryRun:       true,
	}

	msg := req.Message([]string{"a"})

	assert.True(t, msg.IsValid())
	assert.True(t, msg.To().IsMulticast())
	assert.Equal(t, []string{"a"}, msg.To().IDs())
	assert.Equal(t, "c", msg.CollapseKey)
	assert.Equal(t, &ttl, msg.TimeToLive)
	assert.True(t, msg.DryRun)

	// The message owns its own copy of the notification.
	msg.Notification().Title = "changed"
	assert.Equal(t, "T", req.Notification.Title)
}

func TestReceipt(t *testing.T) {
	var r dispatch.Receipt
	r.Merge(dispatch.Receipt{Delivered: 2, Invalid: []string{"x"}})
	r.Merge(dispatch.Receipt{Delivered: 1, Canonical: map[string]string{"a": "b"}})

	assert.Equal(t, 3, r.Delivered)
	assert.Equal(t, []string{"x"}, r.Invalid)
	assert.Equal(t, map[string]string{"a": "b"}, r.Canonical)
	assert.Equal(t, "success:3 invalid:1 canonical:1", r.String())

	assert.Equal(t, "skipped: no tokens", dispatch.Receipt{Skipped: "no tokens"}.String())

	r.Skipped = "payload_too_big"
	assert.Equal(t, "success:3 invalid:1 canonical:1 skipped:payload_too_big", r.String())
}
