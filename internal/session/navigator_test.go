package session

import "testing"

func TestIsSafeRelativePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/challenges", true},
		{"/knowledge?tab=web", true},
		{"", false},
		{"//evil.example", false},
		{"https://evil.example", false},
		{"%2F%2Fevil.example", false},
		{"javascript:alert(1)", false},
		{"relative/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsSafeRelativePath(tt.path); got != tt.want {
				t.Fatalf("IsSafeRelativePath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestRedirectRecorderConsumeClearsPending(t *testing.T) {
	recorder := NewRedirectRecorder()

	recorder.Go("/first")
	recorder.Go("/second")

	if got := recorder.Consume(); got != "/second" {
		t.Fatalf("Consume() = %q, want the latest redirect", got)
	}
	if got := recorder.Consume(); got != "" {
		t.Fatalf("Consume() = %q, want empty after drain", got)
	}
}

func TestRedirectRecorderIgnoresUnsafeLocations(t *testing.T) {
	recorder := NewRedirectRecorder()

	recorder.SetCurrent("https://evil.example/login")
	if got := recorder.Current().Path; got != "/" {
		t.Fatalf("Current() = %q, want default route preserved", got)
	}

	recorder.SetCurrent("/login?returnUrl=%2Fhome")
	if got := recorder.Current().Path; got != "/login" {
		t.Fatalf("Current() = %q, want reported location", got)
	}
}
