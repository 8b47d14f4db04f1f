package gcm_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-gcm-service/pkg/gcm"
)

const multicastBody = `{
  "multicast_id": 216,
  "success": 3,
  "failure": 3,
  "canonical_ids": 1,
  "results": [
    { "message_id": "1:0408" },
    { "error": "Unavailable" },
    { "error": "InvalidRegistration" },
    { "message_id": "1:1516" },
    { "message_id": "1:2342", "registration_id": "32" },
    { "error": "NotRegistered"}
  ]
}`

func TestResponse_DecodeAndClassify(t *testing.T) {
	client, transport := newMockedClient(t, "secret")
	transport.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, multicastBody))

	ids := []string{"4", "8", "15", "16", "23", "42"}
	msg := validMessage(gcm.Multiple(ids...))

	resp, err := client.Send(context.Background(), msg)
	require.NoError(t, err)

	// The raw body is untouched by decoding.
	assert.Equal(t, multicastBody, resp.Body())

	res, err := resp.Decode()
	require.NoError(t, err)
	assert.Equal(t, int64(216), res.MulticastID)
	assert.Equal(t, 3, res.Success)
	assert.Equal(t, 3, res.Failure)
	assert.Len(t, res.Results, 6)

	out := res.Classify(resp.Message().To().IDs())
	assert.Equal(t, 3, out.Delivered)
	assert.Equal(t, []string{"15", "42"}, out.Invalid)
	assert.Equal(t, []string{"8"}, out.Retryable)
	assert.Equal(t, map[string]string{"23": "32"}, out.Canonical)
	assert.Empty(t, out.Other)
}

func TestResponse_DecodeInvalidBody(t *testing.T) {
	client, transport := newMockedClient(t, "secret")
	transport.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `not json`))

	resp, err := client.Send(context.Background(), validMessage(gcm.Single("abc")))
	require.NoError(t, err)

	_, err = resp.Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response body")
}

func TestClassify_MoreResultsThanIDs(t *testing.T) {
	res := &gcm.MulticastResult{Results: []gcm.Result{{MessageID: "1"}, {Error: "NotRegistered"}}}

	out := res.Classify([]string{"only"})
	assert.Equal(t, 1, out.Delivered)
	assert.Empty(t, out.Invalid)
}
