package fsm

import "fmt"

// State is a session phase.
type State string

type Event string

// Status is the coarse, forward-only lifecycle derived from State.
type Status string

// Turn tracks who holds the floor inside a phase.
type Turn string

const (
	StateNotStarted  State = "not_started"
	StateGreeting    State = "greeting"
	StateQuestioning State = "questioning"
	StateClosing     State = "closing"
	StateInProgress  State = "in_progress"
	StateCompleted   State = "completed"
)

const (
	EventBeginConversation Event = "begin_conversation"
	EventBeginTimed        Event = "begin_timed"
	EventAcknowledge       Event = "acknowledge"
	EventNext              Event = "next"
	EventLast              Event = "last"
	EventFinish            Event = "finish"
	EventDeadline          Event = "deadline"
)

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

const (
	TurnIdle     Turn = "idle"
	TurnSpeaking Turn = "speaking"
	TurnAwaiting Turn = "awaiting"
	TurnThinking Turn = "thinking"
)

func Transition(current State, event Event) (State, error) {
	if event == EventDeadline {
		switch current {
		case StateGreeting, StateQuestioning, StateClosing, StateInProgress:
			return StateCompleted, nil
		}
	}

	switch current {
	case StateNotStarted:
		switch event {
		case EventBeginConversation:
			return StateGreeting, nil
		case EventBeginTimed:
			return StateInProgress, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateGreeting:
		switch event {
		case EventAcknowledge:
			return StateQuestioning, nil
		case EventFinish:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateQuestioning:
		switch event {
		case EventNext:
			return StateQuestioning, nil
		case EventLast:
			return StateClosing, nil
		case EventFinish:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateClosing:
		switch event {
		case EventFinish:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateInProgress:
		switch event {
		case EventNext:
			return StateInProgress, nil
		case EventLast, EventFinish:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// StatusOf maps a phase onto the lifecycle status.
func StatusOf(state State) Status {
	switch state {
	case StateNotStarted:
		return StatusNotStarted
	case StateCompleted:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
