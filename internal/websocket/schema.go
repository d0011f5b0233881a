package websocket

import "github.com/stemsi/exstem-rmib/internal/rmib"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart    Action = "start"
	ActionSetValue Action = "set_value"
	ActionUnset    Action = "unset"
	ActionMoveRank Action = "move_rank"
	ActionClear    Action = "clear"
	ActionSave     Action = "save"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// ActionRequest is one user action. Which fields matter depends on Action:
// set_value uses category and value, unset uses category, move_rank uses
// from and to (0-based positions in rank order).
type ActionRequest struct {
	Action   Action `json:"action" validate:"required,oneof=start set_value unset move_rank clear save submit ping"`
	Category string `json:"category,omitempty" validate:"required_if=Action set_value,required_if=Action unset"`
	Value    int    `json:"value,omitempty"`
	From     *int   `json:"from,omitempty" validate:"required_if=Action move_rank"`
	To       *int   `json:"to,omitempty" validate:"required_if=Action move_rank"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventView      Event = "view"
	EventNotice    Event = "notice"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// ViewResponse carries the full render state after every change.
type ViewResponse struct {
	Event Event     `json:"event"`
	View  rmib.View `json:"view"`
}

// NoticeResponse is a toast for the user.
type NoticeResponse struct {
	Event  Event       `json:"event"`
	Notice rmib.Notice `json:"notice"`
}

// SubmittedResponse is sent once the backend has scored the test.
type SubmittedResponse struct {
	Event           Event  `json:"event"`
	TotalScore      int    `json:"total_score"`
	PrimaryInterest string `json:"primary_interest,omitempty"`
	PrimaryLevel    int    `json:"primary_level,omitempty"`
	RedirectURL     string `json:"redirect_url"`
}

type ErrorResponse struct {
	Event  Event        `json:"event"`
	Error  string       `json:"error"`
	Issues []rmib.Issue `json:"issues,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
