// Package bulk aggregates several uploaded objects into a single shareable
// bundle. A bundle is built up through a mutable per-owner session and then
// frozen by a finalize step; after that the session is gone and the bundle
// never changes.
package bulk

import (
	"time"
)

// A FileRef is the summary of one stored object carried inside a session
// or bundle: enough to build a download link, nothing more.
type FileRef struct {
	ID   string `json:"id"`
	Size int64  `json:"size"`
	Code string `json:"code"`
}

// A Session is the in-progress aggregation for one owner. At most one
// session exists per owner at a time.
type Session struct {
	Owner string    `json:"owner"`
	Name  string    `json:"name"`
	Text  string    `json:"text"`
	Files []FileRef `json:"files"`
}

// A Bundle is a finalized session. Immutable once created.
type Bundle struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Text    string    `json:"text"`
	Files   []FileRef `json:"files"`
	Created time.Time `json:"created"`
}
