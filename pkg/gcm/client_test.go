package gcm_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-gcm-service/pkg/gcm"
)

const testEndpoint = "https://gcm.test/send"

// newMockedClient wires a client to its own mock transport so tests never
// touch the network or the global httpmock state.
func newMockedClient(t *testing.T, apiKey string, opts ...gcm.Option) (*gcm.Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := &http.Client{Transport: transport}
	opts = append([]gcm.Option{gcm.WithEndpoint(testEndpoint), gcm.WithHTTPClient(hc)}, opts...)
	return gcm.NewClient(apiKey, opts...), transport
}

func validMessage(to gcm.Recipients) *gcm.Message {
	return gcm.NewMessage(gcm.NewNotification("Hello", "World"), to)
}

func manyIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("reg-%d", i)
	}
	return ids
}

func TestSend_Success(t *testing.T) {
	client, transport := newMockedClient(t, "secret")

	var gotHeaders http.Header
	var gotBody string
	transport.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		gotHeaders = req.Header.Clone()
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		return httpmock.NewStringResponse(http.StatusOK, `{"success":1}`), nil
	})

	msg := validMessage(gcm.Single("abc"))
	resp, err := client.Send(context.Background(), msg)

	require.NoError(t, err)
	assert.Equal(t, `{"success":1}`, resp.Body())
	assert.Same(t, msg, resp.Message())
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "key=secret", gotHeaders.Get("Authorization"))
	assert.Contains(t, gotBody, `"to":"abc"`)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestSend_ValidationFailure(t *testing.T) {
	client, transport := newMockedClient(t, "secret")

	resp, err := client.Send(context.Background(), gcm.NewMessage(nil, gcm.Single("abc")))

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, gcm.ErrValidation)

	var verr *gcm.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"Notification title is required"}, verr.Errors)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestSend_ValidationRunsBeforeAPIKeyCheck(t *testing.T) {
	client, _ := newMockedClient(t, "")

	_, err := client.Send(context.Background(), gcm.NewMessage(nil, gcm.Single("abc")))
	assert.ErrorIs(t, err, gcm.ErrValidation)
}

func TestSend_PreflightFailures(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		msg     func() *gcm.Message
		wantErr error
	}{
		{
			name:    "empty api key",
			apiKey:  "",
			msg:     func() *gcm.Message { return validMessage(gcm.Single("abc")) },
			wantErr: gcm.ErrIllegalAPIKey,
		},
		{
			name:    "no recipients",
			apiKey:  "secret",
			msg:     func() *gcm.Message { return gcm.NewMessage(gcm.NewNotification("t", ""), gcm.Recipients{}) },
			wantErr: gcm.ErrNoRecipients,
		},
		{
			name:    "1001 recipients",
			apiKey:  "secret",
			msg:     func() *gcm.Message { return validMessage(gcm.Multiple(manyIDs(1001)...)) },
			wantErr: gcm.ErrTooManyRecipients,
		},
		{
			name:    "empty id in list",
			apiKey:  "secret",
			msg:     func() *gcm.Message { return validMessage(gcm.Multiple("a", "")) },
			wantErr: gcm.ErrWrongRecipientID,
		},
		{
			name:   "payload over 4096 bytes",
			apiKey: "secret",
			msg: func() *gcm.Message {
				m := validMessage(gcm.Single("abc"))
				m.Data = map[string]any{"blob": strings.Repeat("x", 4096)}
				return m
			},
			wantErr: gcm.ErrTooBigPayload,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, transport := newMockedClient(t, tc.apiKey)
			transport.RegisterResponder(http.MethodPost, testEndpoint,
				httpmock.NewStringResponder(http.StatusOK, `{}`))

			resp, err := client.Send(context.Background(), tc.msg())

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, gcm.IsRetryable(err))
			assert.Zero(t, transport.GetTotalCallCount(), "no request may be issued")
		})
	}
}

func TestSend_RecipientCountBoundary(t *testing.T) {
	client, transport := newMockedClient(t, "secret")
	transport.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"success":1000}`))

	// Only the count is asserted; a list this long may still exceed the
	// payload limit.
	ids := make([]string, gcm.MaxRecipients)
	for i := range ids {
		ids[i] = "r"
	}
	m := gcm.NewMessage(gcm.NewNotification("t", ""), gcm.Multiple(ids...))

	_, err := client.Send(context.Background(), m)
	assert.NotErrorIs(t, err, gcm.ErrTooManyRecipients)
	assert.NotErrorIs(t, err, gcm.ErrNoRecipients)
}

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   error
		retryable bool
	}{
		{http.StatusBadRequest, gcm.ErrAuthentication, false},
		{http.StatusUnauthorized, gcm.ErrAuthentication, false},
		{http.StatusForbidden, gcm.ErrHTTP, false},
		{http.StatusNotFound, gcm.ErrHTTP, false},
		{http.StatusInternalServerError, gcm.ErrHTTP, true},
		{http.StatusServiceUnavailable, gcm.ErrHTTP, true},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client, transport := newMockedClient(t, "secret")
			transport.RegisterResponder(http.MethodPost, testEndpoint,
				httpmock.NewStringResponder(tc.status, `{"error":"nope"}`))

			resp, err := client.Send(context.Background(), validMessage(gcm.Single("abc")))

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tc.wantErr)

			var se *gcm.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.status, se.StatusCode)
			assert.Equal(t, `{"error":"nope"}`, se.Body)
			assert.Equal(t, tc.retryable, gcm.IsRetryable(err))

			// Status answers are never retried.
			assert.Equal(t, 1, transport.GetTotalCallCount())
		})
	}
}

func TestSend_TransportRetry(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		client, transport := newMockedClient(t, "secret")
		calls := 0
		transport.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"success":1}`), nil
		})

		resp, err := client.Send(context.Background(), validMessage(gcm.Single("abc")))

		require.NoError(t, err)
		assert.Equal(t, `{"success":1}`, resp.Body())
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after one retry", func(t *testing.T) {
		client, transport := newMockedClient(t, "secret")
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewErrorResponder(errors.New("network down")))

		_, err := client.Send(context.Background(), validMessage(gcm.Single("abc")))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport failed")
		assert.True(t, gcm.IsRetryable(err))
		assert.Equal(t, 2, transport.GetTotalCallCount())
	})

	t.Run("disabled", func(t *testing.T) {
		client, transport := newMockedClient(t, "secret", gcm.WithTransportRetry(false))
		transport.RegisterResponder(http.MethodPost, testEndpoint,
			httpmock.NewErrorResponder(errors.New("network down")))

		_, err := client.Send(context.Background(), validMessage(gcm.Single("abc")))

		require.Error(t, err)
		assert.Equal(t, 1, transport.GetTotalCallCount())
	})
}

func TestSend_Timeout(t *testing.T) {
	client, transport := newMockedClient(t, "secret", gcm.WithTimeout(50*time.Millisecond))
	transport.RegisterResponder(http.MethodPost, testEndpoint, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	start := time.Now()
	_, err := client.Send(context.Background(), validMessage(gcm.Single("abc")))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	// The deadline is spent, so the retry is skipped.
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestSend_CancelledContext(t *testing.T) {
	client, transport := newMockedClient(t, "secret")
	transport.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, validMessage(gcm.Single("abc")))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, gcm.IsRetryable(err))
}

func TestClient_DefaultEndpoint(t *testing.T) {
	assert.Equal(t, gcm.DefaultEndpoint, gcm.NewClient("k").Endpoint())
}
