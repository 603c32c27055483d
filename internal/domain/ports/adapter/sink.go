package adapter

// TranscriptSink is the rendering surface collaborator. The reconciler
// calls it after every transcript mutation; implementations must not block.
type TranscriptSink interface {
	TranscriptUpdated(sessionID string)
}

// NoopSink discards updates.
type NoopSink struct{}

func (NoopSink) TranscriptUpdated(string) {}
