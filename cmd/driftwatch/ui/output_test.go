package ui

import "testing"

func TestWantStyled(t *testing.T) {
	tests := []struct {
		name  string
		plain bool
		env   map[string]string
		want  bool
	}{
		{name: "default", want: true},
		{name: "plain flag", plain: true, want: false},
		{name: "ci", env: map[string]string{"CI": "true"}, want: false},
		{name: "ci off", env: map[string]string{"CI": "0"}, want: true},
		{name: "no color", env: map[string]string{"NO_COLOR": "1"}, want: false},
		{name: "plain env", env: map[string]string{"DRIFTWATCH_PLAIN": " YES "}, want: false},
		{name: "dumb term", env: map[string]string{"TERM": "Dumb"}, want: false},
		{name: "xterm", env: map[string]string{"TERM": "xterm-256color"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := wantStyled(tt.plain, getenv); got != tt.want {
				t.Fatalf("wantStyled() = %v, want %v", got, tt.want)
			}
		})
	}
}
