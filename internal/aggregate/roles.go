package aggregate

import "eventScope/internal/model"

const (
	EventRoleGranted = "RoleGranted"
	EventRoleRevoked = "RoleRevoked"
)

// FoldRoles builds the current role membership from a log collection. Events
// are replayed in ascending block order; events sharing a block keep their
// input order.
func FoldRoles(events []model.LogEvent) model.RoleState {
	return ApplyRoles(model.RoleState{}, replayOrder(events))
}

// ApplyRoles replays already ordered events onto state and returns it.
// The first argument of a grant or revoke is the actor, the second the role.
func ApplyRoles(state model.RoleState, ordered []model.LogEvent) model.RoleState {
	if state == nil {
		state = model.RoleState{}
	}
	for _, event := range ordered {
		var member bool
		switch event.Event {
		case EventRoleGranted:
			member = true
		case EventRoleRevoked:
			member = false
		default:
			continue
		}
		if len(event.Args) < 2 {
			continue
		}
		state.Set(event.Args[0].Value, event.Args[1].Value, member)
	}
	return state
}
