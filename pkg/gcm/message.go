package gcm

import "encoding/json"

const titleRequired = "Notification title is required"

// Message is one request to the gateway: a notification, an optional data
// payload, the recipients and the delivery flags.
//
// A Message is not safe for concurrent mutation. Build it on one goroutine and
// hand it to Client.Send.
type Message struct {
	// Data is the custom key/value payload. A nil map omits the "data" key.
	Data map[string]any
	// CollapseKey lets the gateway keep only the latest pending message with
	// the same key for an offline device.
	CollapseKey    string
	DelayWhileIdle bool
	// TimeToLive is in seconds. nil leaves the gateway default (4 weeks).
	TimeToLive            *int
	RestrictedPackageName string
	// DryRun asks the gateway to validate the request without delivering it.
	DryRun bool

	notification *Notification
	to           Recipients
}

func NewMessage(n *Notification, to Recipients) *Message {
	return &Message{notification: n, to: to}
}

func (m *Message) SetNotification(n *Notification) *Message {
	m.notification = n
	return m
}

// Notification returns the message notification, or an empty one if none
// was set. The empty notification is not stored on the message.
func (m *Message) Notification() *Notification {
	if m.notification == nil {
		return &Notification{}
	}
	return m.notification
}

// SetTo replaces the recipients. Counts are checked by Client.Send.
func (m *Message) SetTo(to Recipients) *Message {
	m.to = to
	return m
}

// AddTo appends one registration ID. A single recipient becomes a list of
// two, so SetTo(Single("a")) followed by AddTo("b") addresses ["a", "b"].
func (m *Message) AddTo(id string) error {
	if id == "" {
		return ErrWrongRecipientID
	}
	m.to = m.to.add(id)
	return nil
}

func (m *Message) To() Recipients { return m.to }

// SetTimeToLive is a convenience for the pointer field.
func (m *Message) SetTimeToLive(seconds int) *Message {
	m.TimeToLive = &seconds
	return m
}

// Validate returns the problems that prevent the message from being sent.
// Every call starts from an empty list.
func (m *Message) Validate() []string {
	var errs []string
	if m.Notification().Title == "" {
		errs = append(errs, titleRequired)
	}
	return errs
}

func (m *Message) IsValid() bool {
	return len(m.Validate()) == 0
}

// MarshalJSON produces the gateway request body. Exactly one of "to" and
// "registration_ids" is present, chosen by the recipient form.
func (m *Message) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"notification":            m.Notification().ToMap(),
		"collapse_key":            nullable(m.CollapseKey),
		"delay_while_idle":        m.DelayWhileIdle,
		"time_to_live":            nil,
		"restricted_package_name": nullable(m.RestrictedPackageName),
		"dry_run":                 m.DryRun,
	}
	if m.TimeToLive != nil {
		body["time_to_live"] = *m.TimeToLive
	}
	if m.Data != nil {
		body["data"] = m.Data
	}
	if m.to.IsMulticast() {
		ids := m.to.IDs()
		if ids == nil {
			ids = []string{}
		}
		body["registration_ids"] = ids
	} else {
		body["to"] = m.to.single
	}
	return json.Marshal(body)
}
