// Package pipeline holds the state shared between the ingest and display
// stages: the processed-path set, the session id counter and the failure
// taxonomy.
package pipeline

import "sync/atomic"

// Coordinator owns the only state touched by more than one stage. It is
// created once by the app and injected into the watcher and the supervisor.
type Coordinator struct {
	Processed *ProcessedSet

	sessionSeq atomic.Int64
}

func NewCoordinator() *Coordinator {
	return &Coordinator{Processed: NewProcessedSet()}
}

// NextSessionID returns the next session id, starting at 1.
func (c *Coordinator) NextSessionID() int64 {
	return c.sessionSeq.Add(1)
}

// Sessions reports how many session ids have been handed out.
func (c *Coordinator) Sessions() int64 {
	return c.sessionSeq.Load()
}
