package logic

import (
	"fmt"
	"strings"
)

// ParseCommand maps a raw command value to a Command.
// Surrounding whitespace and JSON string quotes are ignored and matching is
// case-insensitive. Anything else maps to CommandUnknown.
func ParseCommand(raw string) Command {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	switch strings.ToUpper(s) {
	case string(CommandOn):
		return CommandOn
	case string(CommandOff):
		return CommandOff
	case string(CommandAuto):
		return CommandAuto
	default:
		return CommandUnknown
	}
}

// Transition returns the actuator state that follows cmd.
// AUTO keeps the current state. An unrecognized command keeps the current
// state and reports ErrUnrecognizedCommand.
func Transition(current ActuatorState, cmd Command) (ActuatorState, error) {
	if current != StateEnergized {
		current = StateDeEnergized
	}
	switch cmd {
	case CommandOn:
		return StateEnergized, nil
	case CommandOff:
		return StateDeEnergized, nil
	case CommandAuto:
		return current, nil
	default:
		return current, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, string(cmd))
	}
}
