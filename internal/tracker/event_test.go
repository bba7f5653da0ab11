package tracker

import "testing"

func TestParseEvent_Valid(t *testing.T) {
	data := []byte(`{
		"tool_name": "Bash",
		"exit_code": 1,
		"stderr": "boom",
		"tool_input": {"command": "make test"}
	}`)

	e, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent() error: %v", err)
	}
	if e.ToolName != "Bash" || e.ExitCode != 1 || e.Stderr != "boom" {
		t.Errorf("ParseEvent() = %+v", e)
	}
	cmd, ok := e.Command()
	if !ok || cmd != "make test" {
		t.Errorf("Command() = %q, %v", cmd, ok)
	}
}

func TestParseEvent_Rejected(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing tool_name", `{"exit_code": 1}`},
		{"missing exit_code", `{"tool_name": "Bash"}`},
		{"empty tool_name", `{"tool_name": "", "exit_code": 1}`},
		{"exit_code wrong type", `{"tool_name": "Bash", "exit_code": "1"}`},
		{"tool_input not object", `{"tool_name": "Bash", "exit_code": 1, "tool_input": []}`},
		{"not an object", `[1, 2, 3]`},
		{"not json", `hello`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseEvent([]byte(tc.data)); err == nil {
				t.Errorf("ParseEvent(%s) accepted, want rejection", tc.data)
			}
		})
	}
}

func TestIsFailure(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"nonzero exit", Event{ToolName: "Bash", ExitCode: 1}, true},
		{"stderr only", Event{ToolName: "Bash", ExitCode: 0, Stderr: "warning: deprecated"}, true},
		{"clean run", Event{ToolName: "Bash", ExitCode: 0, Stdout: "ok"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.event.IsFailure(); got != tc.want {
				t.Errorf("IsFailure() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		occurrences int
		sessions    int
		want        string
	}{
		{10, 3, SeverityCritical},
		{15, 5, SeverityCritical},
		{10, 2, SeverityHigh},
		{5, 2, SeverityHigh},
		{5, 1, SeverityMedium},
		{3, 1, SeverityMedium},
		{2, 1, SeverityLow},
		{1, 1, SeverityLow},
	}

	for _, tc := range tests {
		got := SeverityFor(tc.occurrences, tc.sessions)
		if got != tc.want {
			t.Errorf("SeverityFor(%d, %d) = %q, want %q", tc.occurrences, tc.sessions, got, tc.want)
		}
	}
}
