package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-gcm-service/internal/metrics"
	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
)

const (
	gatewayName = "fcm"
	// maxTokens is the SendEachForMulticast limit.
	maxTokens = 500
)

// MessagingClient is the subset of *messaging.Client we use.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SendEachForMulticastDryRun(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Dispatcher delivers requests through the Firebase HTTP v1 API. It accepts
// the same registration IDs as the legacy endpoint.
type Dispatcher struct {
	client  MessagingClient
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// isBatchRejected reports a whole-batch error that redelivery cannot fix.
var isBatchRejected = messaging.IsInvalidArgument

func NewDispatcher(client MessagingClient, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:  client,
		metrics: m,
		logger:  logger.With("component", "FCMDispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, req *dispatch.Request) (dispatch.Receipt, error) {
	if len(tokens) == 0 {
		return dispatch.Receipt{Skipped: "no tokens"}, nil
	}
	if errs := req.Message(tokens).Validate(); len(errs) > 0 {
		d.logger.Error("Request failed validation (dropping)", "errors", errs)
		return dispatch.Receipt{Skipped: "invalid_message"}, nil
	}

	var receipt dispatch.Receipt
	retryable := 0

	for start := 0; start < len(tokens); start += maxTokens {
		batch := tokens[start:min(start+maxTokens, len(tokens))]

		began := time.Now()
		br, err := d.send(ctx, toMulticast(batch, req), req.DryRun)
		if err != nil {
			d.metrics.AddInvalidTokens(gatewayName, len(receipt.Invalid))
			if isBatchRejected(err) {
				d.metrics.ObserveSend(gatewayName, metrics.OutcomeDropped, time.Since(began))
				d.logger.Error("FCM rejected batch as InvalidArgument (dropping)", "err", err)
				receipt.Skipped = "invalid_argument"
				return receipt, nil
			}
			d.metrics.ObserveSend(gatewayName, metrics.OutcomeRetryable, time.Since(began))
			return receipt, fmt.Errorf("fcm transport failed: %w", err)
		}
		d.metrics.ObserveSend(gatewayName, metrics.OutcomeSuccess, time.Since(began))

		receipt.Delivered += br.SuccessCount
		for idx, resp := range br.Responses {
			if resp.Success || idx >= len(batch) {
				continue
			}
			if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
				receipt.Invalid = append(receipt.Invalid, batch[idx])
				continue
			}
			retryable++
		}
	}

	d.metrics.AddInvalidTokens(gatewayName, len(receipt.Invalid))

	if retryable > 0 {
		return receipt, fmt.Errorf("batch had %d retryable errors", retryable)
	}
	return receipt, nil
}

func (d *Dispatcher) send(ctx context.Context, msg *messaging.MulticastMessage, dryRun bool) (*messaging.BatchResponse, error) {
	if dryRun {
		return d.client.SendEachForMulticastDryRun(ctx, msg)
	}
	return d.client.SendEachForMulticast(ctx, msg)
}

// toMulticast maps the legacy message fields onto their HTTP v1 equivalents.
func toMulticast(tokens []string, req *dispatch.Request) *messaging.MulticastMessage {
	n := req.Notification
	android := &messaging.AndroidConfig{
		CollapseKey:           req.CollapseKey,
		RestrictedPackageName: req.RestrictedPackageName,
		Notification: &messaging.AndroidNotification{
			Icon:         n.Icon,
			Color:        n.Color,
			Sound:        n.Sound,
			Tag:          n.Tag,
			ClickAction:  n.ClickAction,
			BodyLocKey:   n.BodyLocKey,
			BodyLocArgs:  locArgs(n.BodyLocArgs),
			TitleLocKey:  n.TitleLocKey,
			TitleLocArgs: locArgs(n.TitleLocArgs),
		},
	}
	if req.TimeToLive != nil {
		ttl := time.Duration(*req.TimeToLive) * time.Second
		android.TTL = &ttl
	}

	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   stringData(req.Data),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Android: android,
	}
}

// locArgs decodes a JSON array of strings. Anything else yields no args.
func locArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	var args []string
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}

// stringData flattens the payload: HTTP v1 only carries string values.
func stringData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch s := v.(type) {
		case string:
			out[k] = s
		default:
			b, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprint(v)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
