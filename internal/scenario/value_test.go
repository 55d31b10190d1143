package scenario

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Null(), false},
		{Bool(false), false},
		{Bool(true), true},
		{Number(0), false},
		{Number(-1), true},
		{Number(0.5), true},
		{String(""), false},
		{String("0"), true},
		{String("false"), true},
	}

	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%s.Truthy() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestValueEqualNoCoercion(t *testing.T) {
	if Number(0).Equal(Bool(false)) {
		t.Error("0 and false must be distinct")
	}
	if String("1").Equal(Number(1)) {
		t.Error(`"1" and 1 must be distinct`)
	}
	if !Null().Equal(Value{}) {
		t.Error("zero Value is null")
	}
}

func TestValueJSON(t *testing.T) {
	var m map[string]Value
	if err := json.Unmarshal([]byte(`{"a": true, "b": 2.5, "c": "x", "d": null}`), &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m["a"].Equal(Bool(true)) || !m["b"].Equal(Number(2.5)) || !m["c"].Equal(String("x")) || !m["d"].IsNull() {
		t.Errorf("unexpected decode %v", m)
	}

	out, err := json.Marshal(m["b"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "2.5" {
		t.Errorf("expected 2.5, got %s", out)
	}
}

func TestValueYAML(t *testing.T) {
	var m map[string]Value
	src := "a: true\nb: 3\nc: hello\nd: ~\ne: [1]\nf: \"true\"\n"
	if err := yaml.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !m["a"].Equal(Bool(true)) {
		t.Errorf("expected a=true, got %s", m["a"])
	}
	if !m["b"].Equal(Number(3)) {
		t.Errorf("expected b=3, got %s", m["b"])
	}
	if !m["c"].Equal(String("hello")) {
		t.Errorf("expected c=hello, got %s", m["c"])
	}
	if !m["d"].IsNull() {
		t.Errorf("expected d=null, got %s", m["d"])
	}
	if m["e"].supported() {
		t.Error("expected sequence to decode as unsupported")
	}
	if !m["f"].Equal(String("true")) {
		t.Errorf("expected quoted true to stay a string, got %s", m["f"])
	}
}

func TestValueOf(t *testing.T) {
	if v, err := ValueOf(3); err != nil || !v.Equal(Number(3)) {
		t.Errorf("ValueOf(3) = %s, %v", v, err)
	}
	if _, err := ValueOf([]string{"x"}); err == nil {
		t.Error("expected error for slice")
	}
}
