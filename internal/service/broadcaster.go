package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToSubject(subjectID string, msgType string, payload interface{})
}
