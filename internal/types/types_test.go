package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCropMatches(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Tomato", "tomato ", true},
		{"  MAIZE", "maize", true},
		{"tomato", "cherry tomato", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := CropMatches(tt.a, tt.b); got != tt.want {
			t.Errorf("CropMatches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOptionalUnmarshal(t *testing.T) {
	var body struct {
		Name  Optional[string] `json:"name"`
		Phone Optional[string] `json:"phone"`
		Age   Optional[int]    `json:"age"`
	}
	if err := json.Unmarshal([]byte(`{"name":"Achieng","phone":null}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Name.Set || body.Name.Clear || body.Name.Value != "Achieng" {
		t.Errorf("name: %+v", body.Name)
	}
	if !body.Phone.Set || !body.Phone.Clear {
		t.Errorf("phone should be cleared: %+v", body.Phone)
	}
	if body.Age.Set {
		t.Errorf("age was absent but marked set: %+v", body.Age)
	}
}

func TestValidateWrapsErrValidation(t *testing.T) {
	type cmd struct {
		ID  ID      `validate:"required"`
		Qty float64 `validate:"gt=0"`
	}
	err := Validate(cmd{Qty: 0})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := Validate(cmd{ID: "x", Qty: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Retryable(err) || !Retryable(ErrConflict) {
		t.Fatal("only conflicts are retryable")
	}
}
