package spec

import (
	"fmt"
	"strings"
)

// Action is what a sensitive volume does with a particle or a deposit.
type Action int

const (
	ActionNone Action = iota
	ActionCatch
	ActionKill
	ActionRecord
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCatch:
		return "catch"
	case ActionKill:
		return "kill"
	case ActionRecord:
		return "record"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

func parseAction(s string) (Action, bool) {
	switch s {
	case "catch":
		return ActionCatch, true
	case "kill":
		return ActionKill, true
	case "record":
		return ActionRecord, true
	}
	return ActionNone, false
}

// Roles is the sensitivity record of a volume: the action taken on
// particles entering it, on particles leaving it, and on energy deposits
// inside it.
type Roles struct {
	Ingoing  Action
	Outgoing Action
	Deposits Action
}

// IsZero reports whether no role is set, in which case no sensitive
// detector is attached.
func (r Roles) IsZero() bool { return r == Roles{} }

// ParseRoles parses role strings of the form "<action>_<target>", for
// example "catch_ingoing", "kill_outgoing" or "record_deposits". Deposits
// can only be recorded.
func ParseRoles(ss []string) (Roles, error) {
	var r Roles
	for _, s := range ss {
		action, target, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "_")
		a, known := parseAction(action)
		if !ok || !known {
			return Roles{}, fmt.Errorf("bad role '%s' (expected '<catch|kill|record>_<ingoing|outgoing|deposits>')", s)
		}
		var slot *Action
		switch target {
		case "ingoing":
			slot = &r.Ingoing
		case "outgoing":
			slot = &r.Outgoing
		case "deposits":
			if a != ActionRecord {
				return Roles{}, fmt.Errorf("bad role '%s' (deposits can only be recorded)", s)
			}
			slot = &r.Deposits
		default:
			return Roles{}, fmt.Errorf("bad role '%s' (unknown target '%s')", s, target)
		}
		if *slot != ActionNone && *slot != a {
			return Roles{}, fmt.Errorf("bad role '%s' (conflicts with %s_%s)", s, *slot, target)
		}
		*slot = a
	}
	return r, nil
}

// Strings formats r back into role strings, ingoing first.
func (r Roles) Strings() []string {
	var out []string
	if r.Ingoing != ActionNone {
		out = append(out, r.Ingoing.String()+"_ingoing")
	}
	if r.Outgoing != ActionNone {
		out = append(out, r.Outgoing.String()+"_outgoing")
	}
	if r.Deposits != ActionNone {
		out = append(out, r.Deposits.String()+"_deposits")
	}
	return out
}

func (r Roles) String() string {
	if r.IsZero() {
		return "none"
	}
	return strings.Join(r.Strings(), ",")
}
