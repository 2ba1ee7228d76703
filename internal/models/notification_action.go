package models

import (
	"encoding/json"
	"errors"
)

// Action kinds form a closed tagged union. Each kind names the mutation the
// action executor performs and the fields it needs.
const (
	ActionUnapproveCity = "unapprove_city"
)

// ErrNoAction indicates the notification payload carries no action descriptor.
var ErrNoAction = errors.New("notification: no action descriptor")

// ActionDescriptor is an admin-actionable operation embedded in a
// notification payload. Once executed, Disabled flips to true and the action
// may not run again.
type ActionDescriptor struct {
	Kind     string `json:"kind"`
	Label    string `json:"label,omitempty"`
	CityID   string `json:"city_id,omitempty"`
	Disabled bool   `json:"disabled"`
}

// Action decodes the embedded action descriptor, returning ErrNoAction when
// the payload has none.
func (n *Notification) Action() (*ActionDescriptor, error) {
	if len(n.Data) == 0 {
		return nil, ErrNoAction
	}

	var payload struct {
		Action *ActionDescriptor `json:"action"`
	}
	if err := json.Unmarshal(n.Data, &payload); err != nil {
		return nil, err
	}
	if payload.Action == nil || payload.Action.Kind == "" {
		return nil, ErrNoAction
	}
	return payload.Action, nil
}

// SetAction re-encodes the data payload with the supplied descriptor,
// preserving the remaining keys.
func (n *Notification) SetAction(action *ActionDescriptor) error {
	payload := n.DataMap()
	if payload == nil {
		payload = make(map[string]any)
	}
	encoded, err := json.Marshal(action)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return err
	}
	payload["action"] = generic

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	n.Data = raw
	return nil
}
