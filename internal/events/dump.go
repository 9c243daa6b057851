package events

import "time"

// DumpStart is emitted when a dump run begins, before any file is loaded.
type DumpStart struct {
	RunID string
}

// DumpFinish is emitted after a dump run completes.
type DumpFinish struct {
	RunID    string
	Files    int
	Written  int
	Failed   int
	Err      error
	Duration time.Duration
}

// FileStart is emitted before a file is rendered.
type FileStart struct {
	RunID string
	Name  string
}

// FileFinish is emitted after a file has been rendered and written, or has
// failed.
type FileFinish struct {
	RunID    string
	Name     string
	Bytes    int
	Err      error
	Duration time.Duration
}
