package review

// Action is the moderator decision carried in a review token.
//
// The numeric values are part of the wire format. Tokens already posted to
// the moderator chat keep working across deploys only if existing values
// never change: add new actions with new values, never reuse or reorder.
type Action uint8

const (
	ActionDeny           Action = 0
	ActionApprove        Action = 1
	ActionBlock          Action = 2
	ActionUnblock        Action = 3
	ActionRequestContact Action = 4
)

// Valid reports whether a is a registered action.
func (a Action) Valid() bool {
	switch a {
	case ActionDeny, ActionApprove, ActionBlock, ActionUnblock, ActionRequestContact:
		return true
	}
	return false
}

func (a Action) String() string {
	switch a {
	case ActionDeny:
		return "deny"
	case ActionApprove:
		return "approve"
	case ActionBlock:
		return "block"
	case ActionUnblock:
		return "unblock"
	case ActionRequestContact:
		return "request_contact"
	default:
		return "unknown"
	}
}
