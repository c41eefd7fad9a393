package lifecycle

import (
	"fmt"

	"github.com/aaal/envanter/internal/model"
)

// Action is a transition an actor asks for on an existing request.
type Action int

const (
	ActionApprove Action = iota + 1
	ActionReject
	ActionCancel
	ActionReturn
	ActionConfirmReturn
)

var actionNames = map[Action]string{
	ActionApprove:       "approve",
	ActionReject:        "reject",
	ActionCancel:        "cancel",
	ActionReturn:        "return_request",
	ActionConfirmReturn: "confirm_return",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction maps the wire name of an action to its value.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Command is one Action against one request. Note and ReturnType are only
// read by ActionApprove and ActionReject.
type Command struct {
	RequestID  string
	Action     Action
	Note       string
	ReturnType model.ReturnType
}
