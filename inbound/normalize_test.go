package inbound

import (
	"reflect"
	"testing"
)

func TestNormalizeSubject(t *testing.T) {
	cases := map[string]string{
		"Fwd: Fwd: hello":      "hello",
		"fwd:FWD: Fwd:  door":  "door",
		"hello":                "hello",
		"  spaced out  ":       "spaced out",
		"Fwd:":                 "",
		"Note Fwd: keep inner": "Note Fwd: keep inner",
	}
	for input, want := range cases {
		if got := NormalizeSubject(input); got != want {
			t.Fatalf("NormalizeSubject(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestIsReplyChain(t *testing.T) {
	if !IsReplyChain("Re: lunch") {
		t.Fatalf("expected leading reply marker detected")
	}
	if !IsReplyChain("Fwd: Re: lunch") {
		t.Fatalf("expected reply marker anywhere detected")
	}
	if IsReplyChain("Reminder: lunch") {
		t.Fatalf("expected no reply marker")
	}
	if IsReplyChain("Re:lunch") {
		t.Fatalf("expected marker to require the trailing space")
	}
}

func TestExtractIdentifier(t *testing.T) {
	cases := []struct {
		address string
		domain  string
		want    string
		ok      bool
	}{
		{address: "kitchen@notify.example.com", domain: "notify.example.com", want: "kitchen", ok: true},
		{address: "\"Kitchen Speaker\" <kitchen@Notify.Example.com>", domain: "notify.example.com", want: "kitchen", ok: true},
		{address: "arn:device:1234@notify.example.com", domain: "@notify.example.com", want: "arn:device:1234", ok: true},
		{address: "kitchen@other.example.com", domain: "notify.example.com", ok: false},
		{address: "not an address", domain: "notify.example.com", ok: false},
		{address: "kitchen@notify.example.com", domain: "", ok: false},
	}
	for _, tc := range cases {
		got, ok := ExtractIdentifier(tc.address, tc.domain)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractIdentifier(%q, %q): expected (%q, %v), got (%q, %v)", tc.address, tc.domain, tc.want, tc.ok, got, ok)
		}
	}
}

func TestExtractTargets_OrderedAndDeduplicated(t *testing.T) {
	targets := ExtractTargets(
		[]string{"hall@notify.example.com", "someone@elsewhere.org", "kitchen@notify.example.com"},
		[]string{"hall@notify.example.com", "garage@notify.example.com"},
		"notify.example.com",
	)
	want := []string{"hall", "kitchen", "garage"}
	if !reflect.DeepEqual(targets, want) {
		t.Fatalf("expected %v, got %v", want, targets)
	}
}
