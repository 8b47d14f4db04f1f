package gcm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/tinywideclouds/go-gcm-service/internal/metrics"
	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
	gcmapi "github.com/tinywideclouds/go-gcm-service/pkg/gcm"
)

const gatewayName = "gcm"

// Sender is the part of *gcmapi.Client the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, msg *gcmapi.Message) (*gcmapi.Response, error)
}

// Dispatcher delivers requests through the legacy GCM HTTP endpoint.
type Dispatcher struct {
	sender    Sender
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewDispatcher(sender Sender, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		batchSize: gcmapi.MaxRecipients,
		metrics:   m,
		logger:    logger.With("component", "GCMDispatcher"),
	}
}

// Dispatch sends req to tokens in batches of at most gcmapi.MaxRecipients.
// A batch whose body exceeds gcmapi.MaxPayloadSize is split in half until it
// fits or holds a single token.
//
// Invalid and canonical registration IDs are collected across batches and
// returned even when a later batch fails, so the caller can clean them up
// before retrying. A permanent failure stops the fan-out and sets
// Receipt.Skipped on the partial receipt.
func (d *Dispatcher) Dispatch(ctx context.Context, tokens []string, req *dispatch.Request) (dispatch.Receipt, error) {
	if len(tokens) == 0 {
		return dispatch.Receipt{Skipped: "no tokens"}, nil
	}

	var receipt dispatch.Receipt
	retryable := 0
	var sendErr error

	for batch := range slices.Chunk(tokens, d.batchSize) {
		n, err := d.send(ctx, batch, req, &receipt)
		retryable += n
		if err != nil {
			sendErr = err
			break
		}
	}

	d.metrics.AddInvalidTokens(gatewayName, len(receipt.Invalid))
	d.metrics.AddCanonicalTokens(gatewayName, len(receipt.Canonical))

	if sendErr != nil {
		if gcmapi.IsRetryable(sendErr) || ctx.Err() != nil {
			return receipt, fmt.Errorf("gcm send failed: %w", sendErr)
		}
		// Nothing about this request will change on redelivery.
		receipt.Skipped = reasonFor(sendErr)
		return receipt, nil
	}
	if retryable > 0 {
		return receipt, fmt.Errorf("batch had %d retryable errors", retryable)
	}
	return receipt, nil
}

// send posts one batch and merges its outcome into receipt. It returns the
// number of per-token retryable errors.
func (d *Dispatcher) send(ctx context.Context, batch []string, req *dispatch.Request, receipt *dispatch.Receipt) (int, error) {
	start := time.Now()
	resp, err := d.sender.Send(ctx, req.Message(batch))
	if errors.Is(err, gcmapi.ErrTooBigPayload) && len(batch) > 1 {
		half := len(batch) / 2
		d.logger.Debug("Payload over limit, splitting batch", "batch_size", len(batch))
		n, err := d.send(ctx, batch[:half], req, receipt)
		if err != nil {
			return n, err
		}
		m, err := d.send(ctx, batch[half:], req, receipt)
		return n + m, err
	}
	if err != nil {
		if gcmapi.IsRetryable(err) || ctx.Err() != nil {
			d.metrics.ObserveSend(gatewayName, metrics.OutcomeRetryable, time.Since(start))
		} else {
			d.metrics.ObserveSend(gatewayName, metrics.OutcomeDropped, time.Since(start))
			d.logger.Error("GCM rejected request (dropping)", "err", err, "batch_size", len(batch))
		}
		return 0, err
	}
	d.metrics.ObserveSend(gatewayName, metrics.OutcomeSuccess, time.Since(start))

	result, err := resp.Decode()
	if err != nil {
		d.logger.Warn("Accepted by GCM but response could not be decoded", "err", err)
		return 0, nil
	}

	out := result.Classify(batch)
	if len(out.Other) > 0 {
		d.logger.Warn("GCM reported unclassified per-token errors", "count", len(out.Other))
	}
	receipt.Merge(dispatch.Receipt{
		Delivered: out.Delivered,
		Invalid:   out.Invalid,
		Canonical: out.Canonical,
	})
	return len(out.Retryable), nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, gcmapi.ErrValidation):
		return "invalid_message"
	case errors.Is(err, gcmapi.ErrTooBigPayload):
		return "payload_too_big"
	case errors.Is(err, gcmapi.ErrAuthentication), errors.Is(err, gcmapi.ErrIllegalAPIKey):
		return "authentication"
	default:
		return "rejected"
	}
}
