package os2l

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Message
	}{
		{
			name: "beat",
			text: `{"evt":"beat","pos":208,"bpm":128,"strength":80.5,"change":true}`,
			want: Beat{Pos: 208, BPM: 128, Strength: 80.5, Change: true},
		},
		{
			name: "beat defaults",
			text: `{"evt":"beat","pos":0,"bpm":60.5}`,
			want: Beat{Pos: 0, BPM: 60.5, Strength: 100, Change: false},
		},
		{
			name: "beat coerced strings",
			text: `{"evt":"beat","pos":"16","bpm":"174","strength":"5","change":"true"}`,
			want: Beat{Pos: 16, BPM: 174, Strength: 5, Change: true},
		},
		{
			name: "button",
			text: `{"evt":"btn","name":"pulse","state":"on","page":"main"}`,
			want: Button{Name: "pulse", State: "on", Page: "main"},
		},
		{
			name: "button without page",
			text: `{"evt":"btn","name":"strobe","state":"off"}`,
			want: Button{Name: "strobe", State: "off"},
		},
		{
			name: "command",
			text: `{"evt":"cmd","id":1,"param":5}`,
			want: Command{ID: 1, Param: 5},
		},
		{
			name: "command coerced",
			text: `{"evt":"cmd","id":"4","param":"99.5"}`,
			want: Command{ID: 4, Param: 99.5},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Decode(test.text)
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", test.text, err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("Decode(%q) = %#v, want %#v", test.text, got, test.want)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", `{garbage`},
		{"missing evt", `{"pos":1,"bpm":120}`},
		{"unknown evt", `{"evt":"scratch"}`},
		{"bpm too low", `{"evt":"beat","pos":1,"bpm":29.9}`},
		{"bpm too high", `{"evt":"beat","pos":1,"bpm":300.1}`},
		{"negative pos", `{"evt":"beat","pos":-1,"bpm":120}`},
		{"strength too low", `{"evt":"beat","pos":1,"bpm":120,"strength":-0.1}`},
		{"strength too high", `{"evt":"beat","pos":1,"bpm":120,"strength":100.1}`},
		{"beat missing bpm", `{"evt":"beat","pos":1}`},
		{"button empty name", `{"evt":"btn","name":"","state":"on"}`},
		{"button bad state", `{"evt":"btn","name":"a","state":"maybe"}`},
		{"button missing state", `{"evt":"btn","name":"a"}`},
		{"command id zero", `{"evt":"cmd","id":0,"param":5}`},
		{"command id too high", `{"evt":"cmd","id":5,"param":5}`},
		{"command param too high", `{"evt":"cmd","id":1,"param":100.5}`},
		{"command param negative", `{"evt":"cmd","id":1,"param":-1}`},
		{"command missing param", `{"evt":"cmd","id":1}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			msg, err := Decode(test.text)
			if err == nil {
				t.Fatalf("Decode(%q) = %#v, want error", test.text, msg)
			}
			if msg != nil {
				t.Errorf("Decode(%q) returned a message alongside error %v", test.text, err)
			}
		})
	}
}

func TestDecodeValidationErrorType(t *testing.T) {
	_, err := Decode(`{"evt":"beat","pos":1,"bpm":500}`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if verr.Field != "bpm" {
		t.Errorf("ValidationError.Field = %q, want %q", verr.Field, "bpm")
	}
}

func TestEncodeFeedback(t *testing.T) {
	tests := []struct {
		name string
		fb   Feedback
		want string
	}{
		{
			name: "with page",
			fb:   Feedback{Name: "pulse", State: "on", Page: "main"},
			want: `{"evt":"feedback","name":"pulse","state":"on","page":"main"}`,
		},
		{
			name: "without page",
			fb:   Feedback{Name: "strobe", State: "off"},
			want: `{"evt":"feedback","name":"strobe","state":"off"}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := EncodeFeedback(test.fb)
			if err != nil {
				t.Fatalf("EncodeFeedback failed: %v", err)
			}
			if got != test.want {
				t.Errorf("EncodeFeedback = %q, want %q", got, test.want)
			}
		})
	}
}

func TestEncodeFeedbackRejectsInvalid(t *testing.T) {
	for _, fb := range []Feedback{
		{Name: "", State: "on"},
		{Name: "pulse", State: "pressed"},
	} {
		if _, err := EncodeFeedback(fb); err == nil {
			t.Errorf("EncodeFeedback(%#v) succeeded, want error", fb)
		}
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	// Feedback is outbound only, but it must survive our own decoder's
	// field parsing if a peer echoes it back as a button-like structure.
	fb := NewFeedback("music", "fx", true)
	text, err := EncodeFeedback(fb)
	if err != nil {
		t.Fatal(err)
	}

	var framer Framer
	msgs := framer.Push([]byte(text + "\n"))
	if len(msgs) != 1 || msgs[0] != text {
		t.Fatalf("framer did not pass the encoded record through: %q", msgs)
	}
}
