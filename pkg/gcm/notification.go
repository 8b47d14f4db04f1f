package gcm

import "encoding/json"

// Notification is the user-visible part of a message.
//
// Title is required by Message.Validate; everything else is optional and
// passed through verbatim. BodyLocArgs and TitleLocArgs are JSON arrays
// encoded as strings, and Color is expected in #rrggbb form. Neither is
// checked here.
type Notification struct {
	Title            string `json:"title"`
	Body             string `json:"body"`
	Icon             string `json:"icon"`
	Sound            string `json:"sound"`
	Tag              string `json:"tag"`
	Color            string `json:"color"`
	ClickAction      string `json:"click_action"`
	BodyLocKey       string `json:"body_loc_key"`
	BodyLocArgs      string `json:"body_loc_args"`
	TitleLocKey      string `json:"title_loc_key"`
	TitleLocArgs     string `json:"title_loc_args"`
	ContentAvailable *bool  `json:"content_available,omitempty"`
}

func NewNotification(title, body string) *Notification {
	return &Notification{Title: title, Body: body}
}

// ToMap returns the wire form of the notification. All keys are present;
// fields that are empty are null.
func (n Notification) ToMap() map[string]any {
	m := map[string]any{
		"title":          nullable(n.Title),
		"body":           nullable(n.Body),
		"icon":           nullable(n.Icon),
		"sound":          nullable(n.Sound),
		"tag":            nullable(n.Tag),
		"color":          nullable(n.Color),
		"click_action":   nullable(n.ClickAction),
		"body_loc_key":   nullable(n.BodyLocKey),
		"body_loc_args":  nullable(n.BodyLocArgs),
		"title_loc_key":  nullable(n.TitleLocKey),
		"title_loc_args": nullable(n.TitleLocArgs),
	}
	if n.ContentAvailable != nil {
		m["content_available"] = *n.ContentAvailable
	}
	return m
}

func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.ToMap())
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
