package upload

import "encoding/json"

// Entry is a snapshot of one added file and its upload/preview state.
type Entry struct {
	ID        string
	Name      string
	Size      int64
	MediaType string
	Preview   string
	State     State

	attempt int
	file    File
}

// Progress is -1 when not started or failed, otherwise 0-100.
func (e Entry) Progress() int {
	return e.State.Progress()
}

// Response returns the server payload of a successful upload.
func (e Entry) Response() json.RawMessage {
	if d, ok := e.State.(Done); ok {
		return d.Response
	}
	return nil
}

// ErrorMessage returns the failure message of a failed upload.
func (e Entry) ErrorMessage() string {
	if f, ok := e.State.(Failed); ok {
		return f.Message
	}
	return ""
}

// View is the wire form of an Entry.
type View struct {
	ID        string `json:"id" msgpack:"id"`
	Name      string `json:"name" msgpack:"name"`
	Size      int64  `json:"size" msgpack:"size"`
	MediaType string `json:"mediaType" msgpack:"mediaType"`
	Status    Status `json:"status" msgpack:"status"`
	Progress  int    `json:"progress" msgpack:"progress"`
	Preview   string `json:"preview,omitempty" msgpack:"preview,omitempty"`
	Response  any    `json:"response,omitempty" msgpack:"response,omitempty"`
	Error     string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// View converts the entry for JSON or msgpack encoding.
func (e Entry) View() View {
	v := View{
		ID:        e.ID,
		Name:      e.Name,
		Size:      e.Size,
		MediaType: e.MediaType,
		Status:    e.State.Status(),
		Progress:  e.Progress(),
		Preview:   e.Preview,
		Error:     e.ErrorMessage(),
	}
	if raw := e.Response(); len(raw) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			v.Response = decoded
		} else {
			v.Response = string(raw)
		}
	}
	return v
}

// MarshalJSON encodes the entry as its View.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.View())
}
