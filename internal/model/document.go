// Package model defines data structures for the document assistant.
package model

// Source tells where a document came from.
type Source string

const (
	// SourceMedia marks documents auto-loaded from the media folder.
	SourceMedia Source = "media"
	// SourceUpload marks documents uploaded by the user.
	SourceUpload Source = "upload"
)

// Document is a loaded document. Identity is (Name, Source).
type Document struct {
	Name   string `json:"name"`
	Text   string `json:"-"`
	Source Source `json:"source"`

	// RemoteFileID is the backend file id, empty when the document is not
	// retrievable by the backend.
	RemoteFileID string `json:"remote_file_id,omitempty"`
}

// DocumentView is the listing form of a document.
type DocumentView struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Source       Source `json:"source"`
	RemoteFileID string `json:"remote_file_id,omitempty"`
	Chars        int    `json:"chars"`
}

// ListDocumentsResponse is the response for listing documents.
type ListDocumentsResponse struct {
	Documents []DocumentView `json:"documents"`
	Total     int            `json:"total"`
}
