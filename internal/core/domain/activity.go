package domain

import "time"

// Data-change actions broadcast to sibling clients. Anything outside this set
// is logged but never broadcast.
const (
	ActionCreateRecord    = "Create Record"
	ActionUpdateHousehold = "Update Household"
	ActionDeleteHousehold = "Delete Household"
	ActionForceRefresh    = "Force Refresh"
)

// Activity is a single tracked user action. Actor is the display name when
// known, falling back to the username.
type Activity struct {
	ID        string    `json:"id,omitempty"`
	Username  string    `json:"username"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcastable reports whether the activity is a data change that sibling
// clients should be told about.
func (a Activity) Broadcastable() bool {
	switch a.Action {
	case ActionCreateRecord, ActionUpdateHousehold, ActionDeleteHousehold, ActionForceRefresh:
		return true
	}
	return false
}

// DedupKey identifies an activity for cross-channel de-duplication: the same
// event arriving over both delivery paths must collapse to one.
func (a Activity) DedupKey() (action string, ts time.Time) {
	return a.Action, a.Timestamp
}
