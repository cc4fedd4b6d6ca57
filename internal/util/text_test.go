package util

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "cedilla", input: "Março", want: "marco"},
		{name: "circumflex", input: "ÊXODO", want: "exodo"},
		{name: "plain", input: "Dezembro", want: "dezembro"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fold(tc.input); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	lines := SplitLines("  a \r\n\n b  c \r d")
	if len(lines) != 3 {
		t.Fatalf("len=%d", len(lines))
	}
	if lines[1] != "b c" {
		t.Fatalf("line=%q", lines[1])
	}
}

func TestLooseInt(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{name: "minutes string", input: "10 min", want: 10, ok: true},
		{name: "float", input: float64(4), want: 4, ok: true},
		{name: "garbage", input: "min", ok: false},
		{name: "nil", input: nil, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := LooseInt(tc.input)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("got %d,%v want %d,%v", got, ok, tc.want, tc.ok)
			}
		})
	}
}
