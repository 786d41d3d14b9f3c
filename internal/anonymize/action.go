package anonymize

import (
	"fmt"
	"strings"
)

// Action represents what happens to a tag's value during anonymisation.
type Action int

const (
	ActionKeep Action = iota
	ActionRandom
	ActionPseudo
	ActionAnonymous
	ActionUnknown
	// actionBlank and actionReplace drive the built-in default profile and
	// are not accepted in configuration.
	actionBlank
	actionReplace
)

// String returns the configuration spelling of the action.
func (a Action) String() string {
	switch a {
	case ActionRandom:
		return "random"
	case ActionPseudo:
		return "pseudo"
	case ActionAnonymous:
		return "ANONYMOUS"
	case ActionUnknown:
		return "UNKNOWN"
	case actionBlank:
		return "blank"
	case actionReplace:
		return "replace"
	default:
		return "keep"
	}
}

// ParseAction parses a profile action string, case-insensitively.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep":
		return ActionKeep, nil
	case "random":
		return ActionRandom, nil
	case "pseudo":
		return ActionPseudo, nil
	case "anonymous":
		return ActionAnonymous, nil
	case "unknown":
		return ActionUnknown, nil
	default:
		return ActionKeep, fmt.Errorf("invalid action: %s (valid: keep, random, pseudo, ANONYMOUS, UNKNOWN)", s)
	}
}
