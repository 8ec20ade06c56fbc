package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a single proctoring check.
type EventKind string

const (
	EventKindCheck   EventKind = "CHECK"
	EventKindAlert   EventKind = "ALERT"
	EventKindWarning EventKind = "WARNING"
	EventKindError   EventKind = "ERROR"
)

// ProctorEvent is one append-only entry of a session's proctoring log.
type ProctorEvent struct {
	ID         int64     `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Kind       EventKind `json:"kind"`
	Details    string    `json:"details"`
}

// ProctorFrameRequest is the REST payload of a proctoring check.
// Frames are base64 images, optionally with a data URL prefix.
type ProctorFrameRequest struct {
	Frame         string `json:"frame_data"`
	PreviousFrame string `json:"prev_frame_data"`
}

// ProctorResult is returned to the client for every examined frame.
type ProctorResult struct {
	FaceMatch bool      `json:"face_match"`
	Objects   []string  `json:"objects"`
	Movement  string    `json:"movement"`
	Kind      EventKind `json:"kind"`
	Alerts    []string  `json:"alerts,omitempty"`
	Defaulted []string  `json:"defaulted,omitempty"`
}

// Candidate is the identity profile used for proctoring.
// FaceImagePath is relative to the upload directory.
type Candidate struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	FaceImagePath *string `json:"face_image_path,omitempty"`
}

// AlertNotification is published to reviewers whenever a check raises alerts.
type AlertNotification struct {
	Type        string       `json:"type"`
	CandidateID int          `json:"candidate_id"`
	Event       ProctorEvent `json:"event"`
	Alerts      []string     `json:"alerts"`
}
