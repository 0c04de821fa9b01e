package model

import (
	"testing"
	"time"
)

func TestEventType_State(t *testing.T) {
	tests := []struct {
		event EventType
		state VisitState
	}{
		{EventCreated, StateCreated},
		{EventPlacedInQueue, StateWaitingInQueue},
		{EventCalled, StateCalled},
		{EventRecalled, StateCalled},
		{EventStartServing, StateServing},
		{EventStopServing, StateCreated},
		{EventNoShow, StateEnd},
		{EventEnd, StateEnd},
		{EventTransferToQueue, StateWaitingInQueue},
		{EventBackToQueue, StateWaitingInQueue},
		{EventTransferToUserPool, StateWaitingInUserPool},
		{EventBackToUserPool, StateWaitingInUserPool},
		{EventTransferToServicePointPool, StateWaitingInServicePool},
		{EventBackToServicePointPool, StateWaitingInServicePool},
		{EventAddService, StateServing},
		{EventAddedMark, StateServing},
		{EventDeletedNote, StateServing},
		{EventDeleted, StateEnd},
	}
	for _, tt := range tests {
		got, ok := tt.event.State()
		if !ok {
			t.Errorf("EventType(%q).State() not defined", tt.event)
			continue
		}
		if got != tt.state {
			t.Errorf("EventType(%q).State() = %q, want %q", tt.event, got, tt.state)
		}
	}
}

func TestEventType_State_Unknown(t *testing.T) {
	if _, ok := EventType("BOGUS").State(); ok {
		t.Error("unknown event type should have no state mapping")
	}
}

func TestEventType_StartsNewTransaction(t *testing.T) {
	tests := []struct {
		event  EventType
		starts bool
	}{
		{EventStopServing, true},
		{EventNoShow, true},
		{EventPlacedInQueue, true},
		{EventTransferToServicePointPool, true},
		{EventTransferToUserPool, true},
		{EventDeleted, true},

		{EventCreated, false},
		{EventCalled, false},
		{EventRecalled, false},
		{EventStartServing, false},
		{EventEnd, false},
		{EventTransferToQueue, false},
		{EventBackToQueue, false},
		{EventAddService, false},
		{EventAddedMark, false},
	}
	for _, tt := range tests {
		if got := tt.event.StartsNewTransaction(); got != tt.starts {
			t.Errorf("EventType(%q).StartsNewTransaction() = %v, want %v", tt.event, got, tt.starts)
		}
	}
}

func TestEventType_Completion(t *testing.T) {
	tests := []struct {
		event  EventType
		status CompletionStatus
	}{
		{EventStopServing, CompletionStopServing},
		{EventNoShow, CompletionNoShow},
		{EventPlacedInQueue, CompletionPlacedInQueue},
		{EventTransferToQueue, CompletionTransferToQueue},
		{EventTransferToServicePointPool, CompletionTransferToServicePointPool},
		{EventTransferToUserPool, CompletionTransferToUserPool},
		{EventDeleted, CompletionRemovedByEmployee},
		{EventEnd, CompletionOK},
	}
	for _, tt := range tests {
		got, ok := tt.event.Completion()
		if !ok {
			t.Errorf("EventType(%q).Completion() not defined", tt.event)
			continue
		}
		if got != tt.status {
			t.Errorf("EventType(%q).Completion() = %q, want %q", tt.event, got, tt.status)
		}
	}

	if _, ok := EventCalled.Completion(); ok {
		t.Error("CALLED should not map to a completion status")
	}
}

func TestNewLifecycleEvent_CopiesParameters(t *testing.T) {
	params := map[string]string{"vip": "true"}
	ev := NewLifecycleEvent(EventCreated, time.Now(), params)

	params["vip"] = "false"
	if ev.Parameters["vip"] != "true" {
		t.Error("event parameters must be copied, not aliased")
	}
}

func TestNewLifecycleEvent_EmptyParameters(t *testing.T) {
	ev := NewLifecycleEvent(EventCalled, time.Now(), nil)
	if ev.Parameters != nil {
		t.Errorf("expected nil parameters, got %v", ev.Parameters)
	}
}
