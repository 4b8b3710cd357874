package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  OutputFormat
		wantErr bool
	}{
		{FormatText, false},
		{FormatJSON, false},
		{"", false},
		{"csv", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			_, err := NewFormatter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFormatter(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{Indent: true}
	if err := f.FormatTo(&buf, map[string]int{"attempts": 3}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"attempts": 3`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewCommandError("dispatch", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "dispatch") {
		t.Errorf("Error() = %q", err.Error())
	}
}
