package model

import "time"

// LogAction names an audited activity.
type LogAction string

// Audited actions.
const (
	ActionUserRegister    LogAction = "USER_REGISTER"
	ActionUserUpdate      LogAction = "USER_UPDATE"
	ActionUserDelete      LogAction = "USER_DELETE"
	ActionUserLogin       LogAction = "USER_LOGIN"
	ActionUserLogout      LogAction = "USER_LOGOUT"
	ActionInventoryCreate LogAction = "INVENTORY_CREATE"
	ActionInventoryUpdate LogAction = "INVENTORY_UPDATE"
	ActionInventoryDelete LogAction = "INVENTORY_DELETE"
	ActionRequestCreate   LogAction = "REQUEST_CREATE"
	ActionRequestApprove  LogAction = "REQUEST_APPROVE"
	ActionRequestReject   LogAction = "REQUEST_REJECT"
	ActionRequestCancel   LogAction = "REQUEST_CANCEL"
	ActionReturnInitiate  LogAction = "RETURN_INITIATE"
	ActionReturnConfirm   LogAction = "RETURN_CONFIRM"
)

// LogEntry is one append-only activity record.
type LogEntry struct {
	ID        string         `json:"id"`
	Action    LogAction      `json:"action"`
	UserID    string         `json:"userId"`
	UserName  string         `json:"userName"`
	Details   string         `json:"details"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
