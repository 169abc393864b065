package models

import "time"

// FileInfo represents metadata about a file received by the upload-search endpoint.
type FileInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Size        int64     `json:"size" msgpack:"size"`
	ContentType string    `json:"contentType" msgpack:"contentType"`
	SHA256      string    `json:"sha256" msgpack:"sha256"`
	UploadedAt  time.Time `json:"uploadedAt" msgpack:"uploadedAt"`
	Status      string    `json:"status" msgpack:"status"` // "uploaded", "error"
}

// UploadResult is the payload returned by the upload-search endpoint.
// Clients treat it as opaque.
type UploadResult struct {
	File    *FileInfo `json:"file" msgpack:"file"`
	Message string    `json:"message" msgpack:"message"`
}

// Greeting is the body of the sample greeting endpoint.
type Greeting struct {
	Message string `json:"message"`
}
