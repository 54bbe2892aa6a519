package internal

import (
	"encoding/json"

	"gitevents/pkg/storage"
)

// Event is a recorded repository event as seen by rules and publishers.
type Event struct {
	Provider   string              `json:"provider"`
	Name       string              `json:"name"`
	RequestID  string              `json:"request_id,omitempty"`
	Record     storage.EventRecord `json:"record"`
	RawPayload []byte              `json:"-"`
}

// Data returns the flattened view rules are evaluated against: the record's
// fields at the top level, the webhook body under "payload.".
func (e Event) Data() map[string]interface{} {
	data := map[string]interface{}{}
	if raw, err := json.Marshal(e.Record); err == nil {
		var fields map[string]interface{}
		if json.Unmarshal(raw, &fields) == nil {
			data = Flatten(fields)
		}
	}
	if len(e.RawPayload) > 0 {
		var payload map[string]interface{}
		if json.Unmarshal(e.RawPayload, &payload) == nil {
			for key, value := range Flatten(map[string]interface{}{"payload": payload}) {
				data[key] = value
			}
		}
	}
	data["provider"] = e.Provider
	data["event"] = e.Name
	return data
}
