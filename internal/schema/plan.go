package schema

import "fmt"

// Policy selects when a version change triggers migration.
type Policy string

const (
	// PolicyAlways migrates on every version change.
	PolicyAlways Policy = "always"

	// PolicyLegacy migrates only stores older than LegacyThreshold.
	PolicyLegacy Policy = "legacy"
)

// LegacyThreshold is the stored version below which PolicyLegacy migrates.
const LegacyThreshold = 2

// ParsePolicy validates a policy name. Empty means PolicyAlways.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAlways:
		return PolicyAlways, nil
	case PolicyLegacy:
		return PolicyLegacy, nil
	}
	return "", fmt.Errorf("unknown migration policy %q", s)
}

// Action is the schema work required at initialization.
type Action int

const (
	// ActionNone leaves existing tables alone.
	ActionNone Action = iota
	// ActionCreate builds every table in a fresh store.
	ActionCreate
	// ActionMigrate adds and drops columns on every table.
	ActionMigrate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionMigrate:
		return "migrate"
	default:
		return "none"
	}
}

// Plan decides the schema action. fresh means the store has no version
// record yet; stored is the recorded version otherwise.
func Plan(stored int32, fresh bool, requested int32, policy Policy) Action {
	if fresh {
		return ActionCreate
	}
	if stored == requested {
		return ActionNone
	}
	if policy == PolicyLegacy && stored >= LegacyThreshold {
		return ActionNone
	}
	return ActionMigrate
}
