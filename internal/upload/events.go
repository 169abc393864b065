package upload

// EventType names a change to the entry list.
type EventType string

const (
	EventAdded    EventType = "added"
	EventRemoved  EventType = "removed"
	EventPreview  EventType = "preview"
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
	EventFailed   EventType = "failed"
)

// Event is delivered to subscribers after the change is applied.
type Event struct {
	Type  EventType `json:"type" msgpack:"type"`
	Entry View      `json:"entry" msgpack:"entry"`
}

type updateKind int

const (
	updateProgress updateKind = iota
	updateDone
	updateFailed
	updatePreview
	updatePreviewFailed
)

// update is a message from an upload or preview goroutine to the manager loop.
type update struct {
	kind     updateKind
	id       string
	attempt  int
	percent  int
	response []byte
	message  string
	preview  string
}

// terminal updates end one unit of tracked async work.
func (u update) terminal() bool {
	return u.kind != updateProgress
}
