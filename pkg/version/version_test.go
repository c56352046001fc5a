package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Release
	}{
		{"1.0.0", Release{1, 0, 0}},
		{"1.2.3", Release{1, 2, 3}},
		{"v2.10.0", Release{2, 10, 0}},
		{"1.4", Release{1, 4, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"abc",
		"1.0.0.0",
		"1.x.0",
		"-1.0.0",
		"1..0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestRelease_String(t *testing.T) {
	if got := MustParse("v1.2").String(); got != "1.2.0" {
		t.Errorf("String() = %q, want %q", got, "1.2.0")
	}
}

func TestRelease_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"2.0.0", "1.9.9", 1},
	}
	for _, tt := range tests {
		if got := MustParse(tt.a).Compare(MustParse(tt.b)); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRelease_Satisfies(t *testing.T) {
	tests := []struct {
		have, min string
		want      bool
	}{
		{"1.2.0", "1.0.0", true},
		{"1.0.0", "1.0.0", true},
		{"1.0.0", "1.2.0", false},
		{"2.0.0", "1.0.0", false},
	}
	for _, tt := range tests {
		if got := MustParse(tt.have).Satisfies(MustParse(tt.min)); got != tt.want {
			t.Errorf("%s.Satisfies(%s) = %v, want %v", tt.have, tt.min, got, tt.want)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse(\"bad\") should panic")
		}
	}()
	MustParse("bad")
}

func TestCurrent(t *testing.T) {
	if _, err := Parse(Current); err != nil {
		t.Fatalf("Parse(Current) returned error: %v", err)
	}
}
