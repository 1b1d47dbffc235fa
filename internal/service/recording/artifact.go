package recording

import (
	"fmt"
	"time"
)

// Artifact is the immutable audio produced by one stopped session.
// ElapsedSeconds is the counter value at the moment of stop.
type Artifact struct {
	SessionID      string
	MimeType       string
	Data           []byte
	ChunkCount     int
	ElapsedSeconds int
	CreatedAt      time.Time
}

// Empty returns true if no audio was captured.
func (a *Artifact) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// Size returns the artifact size in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

func assemble(sessionID, mimeType string, chunks [][]byte, elapsed int, now time.Time) *Artifact {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return &Artifact{
		SessionID:      sessionID,
		MimeType:       mimeType,
		Data:           data,
		ChunkCount:     len(chunks),
		ElapsedSeconds: elapsed,
		CreatedAt:      now,
	}
}

// FormatElapsed renders seconds as mm:ss. Minutes are not capped at 59.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
