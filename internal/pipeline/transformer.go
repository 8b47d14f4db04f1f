// Package pipeline turns queued push jobs into gateway dispatches.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
)

// RequestTransformer decodes a queue payload into a dispatch.Request.
//
// Malformed JSON and unparseable recipient URNs are returned with skip=true
// so the streaming service hands them to the dead-letter path instead of
// redelivering them.
func RequestTransformer(_ context.Context, msg *messagepipeline.Message) (*dispatch.Request, bool, error) {
	var req dispatch.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal push request from message %s: %w", msg.ID, err)
	}
	if _, err := req.Recipient(); err != nil {
		return nil, true, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return &req, false, nil
}
