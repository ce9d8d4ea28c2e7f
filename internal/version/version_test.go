package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   [3]int
		wantOK bool
	}{
		{name: "three parts", in: "1.2.3", want: [3]int{1, 2, 3}, wantOK: true},
		{name: "missing revision", in: "2.0", want: [3]int{2, 0, 0}, wantOK: true},
		{name: "surrounding space", in: " 1.4.7 ", want: [3]int{1, 4, 7}, wantOK: true},
		{name: "single part", in: "3"},
		{name: "four parts keep major and minor", in: "1.2.3.4", want: [3]int{1, 2, 0}, wantOK: true},
		{name: "four parts with text tail", in: "1.2.x.y", want: [3]int{1, 2, 0}, wantOK: true},
		{name: "text", in: "abc"},
		{name: "v prefix", in: "v1.2.3"},
		{name: "empty", in: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok=%t want=%t", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("Parse(%q)=%v want=%v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		candidate string
		want      bool
	}{
		{name: "revision bump", current: "1.2.3", candidate: "1.2.4", want: true},
		{name: "older minor", current: "1.3.0", candidate: "1.2.9", want: false},
		{name: "major bump without revision", current: "1.9.9", candidate: "2.0", want: true},
		{name: "older major with higher minor", current: "2.0", candidate: "1.9.9", want: false},
		{name: "equal", current: "1.0.0", candidate: "1.0.0", want: false},
		{name: "missing revision equals zero", current: "1.0", candidate: "1.0.0", want: false},
		{name: "minor bump", current: "1.2", candidate: "1.3", want: true},
		{name: "malformed falls back to inequality", current: "abc", candidate: "def", want: true},
		{name: "malformed equal ignoring case", current: "Beta", candidate: "beta", want: false},
		{name: "one side malformed", current: "1.0.0", candidate: "v1.0.0", want: true},
		{name: "four parts ignore trailing build", current: "1.2.0.1", candidate: "1.2.0.9", want: false},
		{name: "four parts downgrade", current: "1.2.0.9", candidate: "1.2.0.1", want: false},
		{name: "four parts revision ignored", current: "1.2.3.5", candidate: "1.2.3.4", want: false},
		{name: "four parts revision ignored upward", current: "1.2.3.4", candidate: "1.2.3.5", want: false},
		{name: "four parts minor bump", current: "1.2.3.4", candidate: "1.3.0.0", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNewer(tt.current, tt.candidate); got != tt.want {
				t.Fatalf("IsNewer(%q,%q)=%t want=%t", tt.current, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestIsNewerRelease(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		candidate string
		want      bool
	}{
		{name: "release beats rc of same number", current: "1.0-RC", candidate: "1.0", want: true},
		{name: "release beats older-looking rc", current: "1.2-RC1", candidate: "1.1", want: true},
		{name: "newer rc", current: "1.2-RC1", candidate: "1.2-RC2", want: true},
		{name: "same rc", current: "1.2-RC2", candidate: "1.2-RC2", want: false},
		{name: "rc candidate after release", current: "1.2", candidate: "1.3-RC1", want: true},
		{name: "plain releases", current: "1.2.0", candidate: "1.2.0", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNewerRelease(tt.current, tt.candidate); got != tt.want {
				t.Fatalf("IsNewerRelease(%q,%q)=%t want=%t", tt.current, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestKnown(t *testing.T) {
	for v, want := range map[string]bool{
		"1.2":     true,
		"1.2.3":   true,
		"1.2.3.4": true,
		"1.2-RC":  true,
		"1.2-RC3": true,
		"dev":     false,
		"":        false,
	} {
		if got := Known(v); got != want {
			t.Fatalf("Known(%q)=%t want=%t", v, got, want)
		}
	}
}
