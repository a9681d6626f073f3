package flow

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapScope(t *testing.T) {
	s := NewMapScope()
	s.Assign("", "name", "Ada")
	s.Assign(ReturnedNamespace, "shop", 12)

	if v, ok := s.Get("name"); !ok || v != "Ada" {
		t.Errorf("expected name=Ada, got %v", v)
	}
	if s.VisitConsumed() {
		t.Error("reading another variable must not consume the visit")
	}

	if _, ok := s.Get(VisitedVar); ok {
		t.Error("expected visited unset")
	}
	if !s.VisitConsumed() {
		t.Error("expected visited read to be flagged")
	}
	if s.VisitConsumed() {
		t.Error("expected flag reset after VisitConsumed")
	}

	if v, ok := s.Lookup(ReturnedNamespace, "shop"); !ok || v != 12 {
		t.Errorf("expected returned[shop]=12, got %v", v)
	}
	if _, ok := s.Lookup("missing", "x"); ok {
		t.Error("expected missing namespace lookup to fail")
	}
}

func TestFlowError(t *testing.T) {
	err := &FlowError{Message: "bad", Code: "EMPTY_GRAPH", BlockID: "intro", Cause: ErrUnknownBlock}
	if got := err.Error(); got != "EMPTY_GRAPH: block intro: bad" {
		t.Errorf("unexpected message %q", got)
	}

	wrapped := fmt.Errorf("start: %w", err)
	if !errors.Is(wrapped, ErrUnknownBlock) {
		t.Error("expected cause reachable through wrapping")
	}
	var fe *FlowError
	if !errors.As(wrapped, &fe) || fe.BlockID != "intro" {
		t.Errorf("expected FlowError with block, got %v", fe)
	}

	if got := (&FlowError{Message: "plain"}).Error(); got != "plain" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestOptions_Validation(t *testing.T) {
	_, err := New(Build(storyBlocks()), NewRegistry(), nil, WithMaxIterations(0))
	var fe *FlowError
	if !errors.As(err, &fe) || fe.Code != "INVALID_OPTION" {
		t.Errorf("expected INVALID_OPTION, got %v", err)
	}

	if _, err := New(nil, NewRegistry(), nil); err == nil {
		t.Error("expected error for nil graph")
	}
}
