package gcm

import (
	"encoding/json"
	"fmt"
)

// Response is a successful (HTTP 200) gateway answer. The body is kept
// verbatim; Decode is available for callers that want the per-token results.
type Response struct {
	message    *Message
	body       string
	statusCode int
}

// NewResponse builds a Response, mostly for fakes of Client.Send.
func NewResponse(msg *Message, statusCode int, body string) *Response {
	return &Response{message: msg, body: body, statusCode: statusCode}
}

func (r *Response) Message() *Message { return r.message }

func (r *Response) Body() string { return r.body }

func (r *Response) StatusCode() int { return r.statusCode }

// MulticastResult is the JSON body the gateway returns for a downstream
// message.
type MulticastResult struct {
	MulticastID  int64    `json:"multicast_id"`
	Success      int      `json:"success"`
	Failure      int      `json:"failure"`
	CanonicalIDs int      `json:"canonical_ids"`
	Results      []Result `json:"results,omitempty"`
}

// Result is the outcome for one registration ID, in request order.
type Result struct {
	MessageID      string `json:"message_id,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Per-token error codes reported in Result.Error.
const (
	ResultMissingRegistration = "MissingRegistration"
	ResultInvalidRegistration = "InvalidRegistration"
	ResultNotRegistered       = "NotRegistered"
	ResultMismatchSenderID    = "MismatchSenderId"
	ResultUnavailable         = "Unavailable"
	ResultInternalServerError = "InternalServerError"
)

// Decode parses the body as a MulticastResult.
func (r *Response) Decode() (*MulticastResult, error) {
	var res MulticastResult
	if err := json.Unmarshal([]byte(r.body), &res); err != nil {
		return nil, fmt.Errorf("gcm: failed to decode response body: %w", err)
	}
	return &res, nil
}

// Outcome groups the registration IDs of a request by what the caller should
// do with them.
type Outcome struct {
	Delivered int `json:"delivered"`
	// Invalid IDs will never be accepted again and should be forgotten.
	Invalid []string `json:"invalid,omitempty"`
	// Canonical maps an ID that was delivered to the ID the gateway wants
	// used from now on.
	Canonical map[string]string `json:"canonical,omitempty"`
	// Retryable IDs failed for reasons on the gateway side.
	Retryable []string `json:"retryable,omitempty"`
	// Other IDs failed with a code that is neither of the above.
	Other []string `json:"other,omitempty"`
}

// Classify matches Results to ids by position. ids must be the request's
// recipients in the order they were sent.
func (m *MulticastResult) Classify(ids []string) Outcome {
	out := Outcome{Canonical: map[string]string{}}
	for i, res := range m.Results {
		if i >= len(ids) {
			break
		}
		id := ids[i]
		switch res.Error {
		case "":
			out.Delivered++
			if res.RegistrationID != "" && res.RegistrationID != id {
				out.Canonical[id] = res.RegistrationID
			}
		case ResultNotRegistered, ResultInvalidRegistration, ResultMismatchSenderID, ResultMissingRegistration:
			out.Invalid = append(out.Invalid, id)
		case ResultUnavailable, ResultInternalServerError:
			out.Retryable = append(out.Retryable, id)
		default:
			out.Other = append(out.Other, id)
		}
	}
	return out
}
