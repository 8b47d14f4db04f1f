// Package dispatch holds the contracts shared by the queue pipeline, the token
// stores and the gateway dispatchers.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/tinywideclouds/go-gcm-service/pkg/gcm"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Request is the queued push job: who to notify and what to show them.
// The delivery options mirror the ones on gcm.Message.
type Request struct {
	RecipientID  string           `json:"recipient_id"`
	Notification gcm.Notification `json:"notification"`
	Data         map[string]any   `json:"data,omitempty"`

	CollapseKey           string `json:"collapse_key,omitempty"`
	DelayWhileIdle        bool   `json:"delay_while_idle,omitempty"`
	TimeToLive            *int   `json:"time_to_live,omitempty"`
	RestrictedPackageName string `json:"restricted_package_name,omitempty"`
	DryRun                bool   `json:"dry_run,omitempty"`
}

// Recipient parses RecipientID.
func (r *Request) Recipient() (urn.URN, error) {
	u, err := urn.Parse(r.RecipientID)
	if err != nil {
		return u, fmt.Errorf("invalid recipient_id %q: %w", r.RecipientID, err)
	}
	return u, nil
}

// Message builds the gateway message for one batch of registration IDs.
func (r *Request) Message(tokens []string) *gcm.Message {
	n := r.Notification
	msg := gcm.NewMessage(&n, gcm.Multiple(tokens...))
	msg.Data = r.Data
	msg.CollapseKey = r.CollapseKey
	msg.DelayWhileIdle = r.DelayWhileIdle
	msg.TimeToLive = r.TimeToLive
	msg.RestrictedPackageName = r.RestrictedPackageName
	msg.DryRun = r.DryRun
	return msg
}

// Receipt summarises a dispatch.
type Receipt struct {
	Delivered int
	// Invalid registration IDs will never be accepted again.
	Invalid []string
	// Canonical maps a stale registration ID to its replacement.
	Canonical map[string]string
	// Skipped is set when the request, or the rest of it, was not sent,
	// with the reason. Earlier batches stay counted above.
	Skipped string
}

func (r Receipt) String() string {
	partial := r.Delivered > 0 || len(r.Invalid) > 0 || len(r.Canonical) > 0
	if r.Skipped != "" && !partial {
		return "skipped: " + r.Skipped
	}
	var b strings.Builder
	fmt.Fprintf(&b, "success:%d invalid:%d", r.Delivered, len(r.Invalid))
	if len(r.Canonical) > 0 {
		fmt.Fprintf(&b, " canonical:%d", len(r.Canonical))
	}
	if r.Skipped != "" {
		fmt.Fprintf(&b, " skipped:%s", r.Skipped)
	}
	return b.String()
}

// Merge folds the receipt of a later batch into r.
func (r *Receipt) Merge(other Receipt) {
	r.Delivered += other.Delivered
	r.Invalid = append(r.Invalid, other.Invalid...)
	for old, replacement := range other.Canonical {
		if r.Canonical == nil {
			r.Canonical = make(map[string]string)
		}
		r.Canonical[old] = replacement
	}
}
