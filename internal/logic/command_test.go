package logic

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
	}{
		{"ON", CommandOn},
		{"OFF", CommandOff},
		{"AUTO", CommandAuto},
		{"on", CommandOn},
		{" Off\n", CommandOff},
		{`"AUTO"`, CommandAuto},
		{`" ON "`, CommandOn},
		{"", CommandUnknown},
		{"1", CommandUnknown},
		{"ONN", CommandUnknown},
		{`"`, CommandUnknown},
		{"UNKNOWN", CommandUnknown},
	}

	for _, tt := range tests {
		if got := ParseCommand(tt.raw); got != tt.want {
			t.Errorf("ParseCommand(%q): got %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    ActuatorState
		cmd     Command
		want    ActuatorState
		wantErr bool
	}{
		{StateDeEnergized, CommandOn, StateEnergized, false},
		{StateEnergized, CommandOn, StateEnergized, false},
		{StateEnergized, CommandOff, StateDeEnergized, false},
		{StateDeEnergized, CommandOff, StateDeEnergized, false},
		{StateEnergized, CommandAuto, StateEnergized, false},
		{StateDeEnergized, CommandAuto, StateDeEnergized, false},
		{StateEnergized, CommandUnknown, StateEnergized, true},
		{StateDeEnergized, Command("PUMP"), StateDeEnergized, true},
		{ActuatorState(""), CommandAuto, StateDeEnergized, false},
	}

	for _, tt := range tests {
		got, err := Transition(tt.from, tt.cmd)
		if got != tt.want {
			t.Errorf("Transition(%s, %s): got %s, want %s", tt.from, tt.cmd, got, tt.want)
		}
		if tt.wantErr && !errors.Is(err, ErrUnrecognizedCommand) {
			t.Errorf("Transition(%s, %s): expected ErrUnrecognizedCommand, got %v", tt.from, tt.cmd, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Transition(%s, %s): unexpected error %v", tt.from, tt.cmd, err)
		}
	}
}

func TestTransitionSequence(t *testing.T) {
	state := StateDeEnergized
	cmds := []Command{CommandOn, CommandAuto, CommandOff, CommandUnknown}
	want := []ActuatorState{StateEnergized, StateEnergized, StateDeEnergized, StateDeEnergized}

	for i, cmd := range cmds {
		state, _ = Transition(state, cmd)
		if state != want[i] {
			t.Errorf("step %d (%s): got %s, want %s", i, cmd, state, want[i])
		}
	}
}

func TestActuatorStateEnergized(t *testing.T) {
	if !StateEnergized.Energized() {
		t.Error("ENERGIZED should report energized")
	}
	if StateDeEnergized.Energized() {
		t.Error("DE_ENERGIZED should not report energized")
	}
}
