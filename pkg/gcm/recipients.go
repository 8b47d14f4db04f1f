package gcm

import "slices"

type recipientKind int

const (
	recipientNone recipientKind = iota
	recipientSingle
	recipientMultiple
)

// Recipients addresses a message either to one registration ID or to a list
// of them. The gateway has a distinct request key for each form ("to" versus
// "registration_ids"), so the form is kept even when a list holds one ID.
type Recipients struct {
	kind   recipientKind
	single string
	multi  []string
}

// Single addresses one device.
func Single(id string) Recipients {
	return Recipients{kind: recipientSingle, single: id}
}

// Multiple addresses a list of devices in order.
func Multiple(ids ...string) Recipients {
	return Recipients{kind: recipientMultiple, multi: slices.Clone(ids)}
}

// IDs returns the recipients as a sequence regardless of form.
func (r Recipients) IDs() []string {
	switch r.kind {
	case recipientSingle:
		return []string{r.single}
	case recipientMultiple:
		return slices.Clone(r.multi)
	default:
		return nil
	}
}

func (r Recipients) Len() int {
	switch r.kind {
	case recipientSingle:
		return 1
	case recipientMultiple:
		return len(r.multi)
	default:
		return 0
	}
}

// IsMulticast is true for the list form, including a list of one.
func (r Recipients) IsMulticast() bool { return r.kind == recipientMultiple }

func (r Recipients) IsZero() bool { return r.kind == recipientNone }

// add appends id, promoting a single recipient to a list first.
func (r Recipients) add(id string) Recipients {
	switch r.kind {
	case recipientSingle:
		return Multiple(r.single, id)
	case recipientMultiple:
		return Recipients{kind: recipientMultiple, multi: append(slices.Clone(r.multi), id)}
	default:
		return Single(id)
	}
}
