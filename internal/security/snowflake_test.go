package security

import "testing"

func TestParseSnowflake(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "123456789012345678", false},
		{"empty", "", true},
		{"letters", "abc123", true},
		{"zero", "0", true},
		{"negative-ish", "-5", true},
		{"overflow", "99999999999999999999999999", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnowflake(tt.input)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.input, err)
			}
		})
	}
}
