package types

import (
	"errors"
	"testing"
)

func TestIsSuccessStatus(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, false},
		{199, false},
		{200, true},
		{204, true},
		{299, true},
		{300, false},
		{404, false},
	}

	for _, tt := range tests {
		if got := IsSuccessStatus(tt.status); got != tt.want {
			t.Errorf("IsSuccessStatus(%d) = %v, expected %v", tt.status, got, tt.want)
		}
	}
}

func TestRequest_IsHeaderDisabled(t *testing.T) {
	req := &Request{DisabledHeaders: []string{"X-Debug"}}

	if !req.IsHeaderDisabled("x-debug") {
		t.Error("expected case-insensitive match")
	}
	if req.IsHeaderDisabled("Authorization") {
		t.Error("expected Authorization to stay enabled")
	}
}

func TestRequest_CloneIsDeep(t *testing.T) {
	orig := &Request{
		ID:          "r",
		Headers:     map[string]string{"A": "1"},
		QueryParams: map[string]string{"q": "x"},
		Auth:        Auth{Type: AuthOAuth2, OAuth2: &OAuth2Config{TokenURL: "http://t", Scopes: []string{"read"}}},
		GraphQL:     &GraphQLSpec{Query: "{ a }", Variables: "{}"},
		WebSocket:   &WebSocketSpec{Message: "hi", Protocols: []string{"chat"}},
	}

	c := orig.Clone()
	c.Headers["A"] = "2"
	c.QueryParams["q"] = "y"
	c.Auth.OAuth2.Scopes[0] = "write"
	c.GraphQL.Variables = `{"x":1}`
	c.WebSocket.Protocols[0] = "other"

	if orig.Headers["A"] != "1" || orig.QueryParams["q"] != "x" {
		t.Error("clone shares maps with the original")
	}
	if orig.Auth.OAuth2.Scopes[0] != "read" {
		t.Error("clone shares OAuth2 scopes with the original")
	}
	if orig.GraphQL.Variables != "{}" || orig.WebSocket.Protocols[0] != "chat" {
		t.Error("clone shares protocol specs with the original")
	}
}

func TestRequest_DisplayName(t *testing.T) {
	if got := (&Request{ID: "id"}).DisplayName(); got != "id" {
		t.Errorf("expected id fallback, got %q", got)
	}
	if got := (&Request{ID: "id", Name: "Get user"}).DisplayName(); got != "Get user" {
		t.Errorf("expected name, got %q", got)
	}
}

func TestFlow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []FlowStep
		wantErr bool
	}{
		{"valid", []FlowStep{{Order: 1, RequestID: "a"}, {Order: 2, RequestID: "b"}}, false},
		{"empty", nil, false},
		{"duplicate order", []FlowStep{{Order: 1, RequestID: "a"}, {Order: 1, RequestID: "b"}}, true},
		{"missing request", []FlowStep{{Order: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Flow{ID: "f", Steps: tt.steps}).Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFlow) {
					t.Fatalf("expected ErrInvalidFlow, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFlow_OrderedSteps(t *testing.T) {
	f := &Flow{Steps: []FlowStep{{Order: 3, RequestID: "c"}, {Order: 1, RequestID: "a"}, {Order: 2, RequestID: "b"}}}

	steps := f.OrderedSteps()
	for i, want := range []string{"a", "b", "c"} {
		if steps[i].RequestID != want {
			t.Fatalf("expected %s at %d, got %s", want, i, steps[i].RequestID)
		}
	}
	if f.Steps[0].RequestID != "c" {
		t.Error("OrderedSteps must not reorder the flow itself")
	}
}

func TestFlowStatus_IsTerminal(t *testing.T) {
	for _, s := range []FlowStatus{FlowCompleted, FlowFailed, FlowCancelled} {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []FlowStatus{FlowPending, FlowRunning} {
		if s.IsTerminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestDynamicVariable_Validate(t *testing.T) {
	ok := DynamicVariable{Name: "d", Type: GenDate, Constraints: []ConstraintRule{{Type: ConstraintMinimum, Value: "2020-01-01"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := DynamicVariable{Name: "n", Type: GenInteger, Constraints: []ConstraintRule{{Type: "between", Value: "1"}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown constraint type")
	}

	if v, found := ok.Constraint(ConstraintMinimum); !found || v != "2020-01-01" {
		t.Errorf("unexpected constraint lookup %q %v", v, found)
	}
}
