package websocket

import "github.com/stemsi/exstem-proctor/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionFrame Action = "frame"
	ActionPing  Action = "ping"
)

// FrameRequest carries one camera frame. PreviousFrame is optional; when it
// is empty the last frame received on the connection is used instead.
type FrameRequest struct {
	Action        Action `json:"action"`
	Frame         string `json:"frame_data"`
	PreviousFrame string `json:"prev_frame_data,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventResult Event = "result"
	EventPong   Event = "pong"
)

// ResultResponse is sent for every examined frame.
type ResultResponse struct {
	Event  Event                `json:"event"`
	Result *model.ProctorResult `json:"result"`
}

// ErrorResponse reports a failed action. Code mirrors the REST error codes.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
