package session

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	var entered []State
	sm := NewStateMachine(func(s State) { entered = append(entered, s) })

	if sm.Current() != StateIdle {
		t.Fatalf("expected initial state IDLE, got %v", sm.Current())
	}

	t.Run("LegalChain", func(t *testing.T) {
		if !sm.Transition(StateUserSpeaking) {
			t.Fatal("IDLE -> USER_SPEAKING should be legal")
		}
		if !sm.Transition(StateAIProcessing) {
			t.Fatal("USER_SPEAKING -> AI_PROCESSING should be legal")
		}
		if !sm.Transition(StateAISpeaking) {
			t.Fatal("AI_PROCESSING -> AI_SPEAKING should be legal")
		}
		if !sm.Transition(StateUserSpeaking) {
			t.Fatal("AI_SPEAKING -> USER_SPEAKING (barge-in) should be legal")
		}
	})

	t.Run("IllegalTransitionRejected", func(t *testing.T) {
		sm := NewStateMachine(nil)
		if sm.Transition(StateAISpeaking) {
			t.Fatal("IDLE -> AI_SPEAKING should be illegal")
		}
		if sm.Current() != StateIdle {
			t.Fatalf("illegal transition must not change state, got %v", sm.Current())
		}
	})

	t.Run("ForceTimeoutAlwaysApplies", func(t *testing.T) {
		sm := NewStateMachine(nil)
		sm.Transition(StateUserSpeaking)
		sm.ForceTimeout()
		if sm.Current() != StateTimeout {
			t.Fatalf("expected TIMEOUT, got %v", sm.Current())
		}
	})

	if len(entered) == 0 {
		t.Error("expected onEnter callback to fire for each legal transition")
	}
}
