// Package models defines the event payloads published by the dictation service.
package models

// Event types.
const (
	EventTranscriptCompleted = "transcript.completed"
	EventDocumentGenerated   = "document.generated"
)

// TranscriptCompleted is emitted when a recording has been transcribed.
type TranscriptCompleted struct {
	EventType      string  `json:"eventType" validate:"required,eq=transcript.completed"`
	SessionID      string  `json:"sessionId" validate:"required"`
	Principal      string  `json:"principal" validate:"required"`
	Timestamp      int64   `json:"timestamp" validate:"required,gt=0"`
	Provider       string  `json:"provider" validate:"required"`
	MimeType       string  `json:"mimeType" validate:"required"`
	ElapsedSeconds int     `json:"elapsedSeconds" validate:"gte=0"`
	Transcript     string  `json:"transcript"`
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`
	WordCount      int     `json:"wordCount" validate:"gte=0"`
	EstimatedCost  float64 `json:"estimatedCostUsd" validate:"gte=0"`
}

// DocumentGenerated is emitted when a clinical document has been generated.
type DocumentGenerated struct {
	EventType       string `json:"eventType" validate:"required,eq=document.generated"`
	SessionID       string `json:"sessionId,omitempty"`
	Principal       string `json:"principal" validate:"required"`
	Timestamp       int64  `json:"timestamp" validate:"required,gt=0"`
	Model           string `json:"model" validate:"required"`
	TranscriptChars int    `json:"transcriptChars" validate:"gt=0"`
	DocumentChars   int    `json:"documentChars" validate:"gte=0"`
	Fragments       int    `json:"fragments" validate:"gte=0"`
	Document        string `json:"document"`
}
