package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// NewProcessor looks up the recipient's registration IDs, dispatches the
// request to them and cleans up the IDs the gateway reports back.
//
// A returned error nacks the queue message. Token cleanup runs before that,
// so a redelivery does not hit the same dead IDs again.
func NewProcessor(
	dispatcher dispatch.Dispatcher,
	tokenStore dispatch.TokenStore,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[dispatch.Request] {

	return func(ctx context.Context, original messagepipeline.Message, req *dispatch.Request) error {
		user, err := req.Recipient()
		if err != nil {
			logger.Error("Dropping request with invalid recipient", "pubsub_msg_id", original.ID, "err", err)
			return nil
		}

		procLogger := logger.With(
			"recipient_id", user.String(),
			"pubsub_msg_id", original.ID,
			"dispatch_id", uuid.NewString(),
		)

		tokens, err := tokenStore.Fetch(ctx, user)
		if err != nil {
			procLogger.Error("Failed to fetch registration ids", "err", err)
			return err
		}
		if len(tokens) == 0 {
			procLogger.Info("No devices registered for user; dropping notification.")
			return nil
		}

		receipt, err := dispatcher.Dispatch(ctx, tokens, req)

		heal(ctx, tokenStore, user, receipt, procLogger)

		if err != nil {
			procLogger.Error("Dispatch failed", "err", err, "tokens", len(tokens))
			return err
		}
		procLogger.Info("Dispatched", "receipt", receipt.String())
		return nil
	}
}

// heal removes invalid registration IDs and swaps canonical ones. Failures
// are logged; the gateway will report the same IDs again next time.
func heal(ctx context.Context, store dispatch.TokenStore, user urn.URN, receipt dispatch.Receipt, logger *slog.Logger) {
	if len(receipt.Invalid) > 0 {
		logger.Info("Cleaning up invalid registration ids", "count", len(receipt.Invalid))
		for _, t := range receipt.Invalid {
			if err := store.Unregister(ctx, user, t); err != nil {
				logger.Warn("Failed to delete registration id", "token", t, "err", err)
			}
		}
	}
	if len(receipt.Canonical) > 0 {
		logger.Info("Replacing registration ids with canonical ids", "count", len(receipt.Canonical))
		for oldToken, newToken := range receipt.Canonical {
			if err := dispatch.ReplaceToken(ctx, store, user, oldToken, newToken); err != nil {
				logger.Warn("Failed to replace registration id", "token", oldToken, "err", err)
			}
		}
	}
}
