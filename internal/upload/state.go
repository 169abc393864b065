package upload

import "encoding/json"

// State is the lifecycle state of an entry: Pending, Uploading, Done or Failed.
type State interface {
	// Progress is -1 for Pending and Failed, the percentage for Uploading, 100 for Done.
	Progress() int
	Status() Status
	isState()
}

// Status names a State for display and the wire.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// Pending entries have never been sent.
type Pending struct{}

// Uploading entries have a request in flight.
type Uploading struct {
	Percent int
}

// Done entries hold the server response verbatim.
type Done struct {
	Response json.RawMessage
}

// Failed entries hold a human-readable message.
type Failed struct {
	Message string
}

func (Pending) Progress() int     { return -1 }
func (u Uploading) Progress() int { return u.Percent }
func (Done) Progress() int        { return 100 }
func (Failed) Progress() int      { return -1 }

func (Pending) Status() Status   { return StatusPending }
func (Uploading) Status() Status { return StatusUploading }
func (Done) Status() Status      { return StatusDone }
func (Failed) Status() Status    { return StatusFailed }

func (Pending) isState()   {}
func (Uploading) isState() {}
func (Done) isState()      {}
func (Failed) isState()    {}
