package assignment

type Event string

const (
	EventAnswer  Event = "answer"
	EventStart   Event = "start"
	EventFinish  Event = "finish"
	EventArchive Event = "archive"
)

type outcome struct {
	to  Status
	err error
}

// transitions is the full lifecycle table. Every (event, status) pair has an
// entry; a missing pair means the status is not a lifecycle state.
var transitions = map[Event]map[Status]outcome{
	EventAnswer: {
		StatusUnset:      {to: StatusDraft},
		StatusDraft:      {to: StatusDraft},
		StatusInProgress: {to: StatusInProgress},
		StatusFinished:   {err: ErrAssignmentAlreadyCompleted},
		StatusArchived:   {err: ErrAssignmentAlreadyCompleted},
	},
	EventStart: {
		StatusUnset:      {to: StatusInProgress},
		StatusDraft:      {to: StatusInProgress},
		StatusInProgress: {to: StatusInProgress},
		StatusFinished:   {err: ErrAssignmentAlreadyCompleted},
		StatusArchived:   {err: ErrAssignmentAlreadyCompleted},
	},
	EventFinish: {
		StatusUnset:      {to: StatusFinished},
		StatusDraft:      {to: StatusFinished},
		StatusInProgress: {to: StatusFinished},
		StatusFinished:   {err: ErrAlreadyFinished},
		StatusArchived:   {err: ErrInvalidTransition},
	},
	EventArchive: {
		StatusUnset:      {to: StatusArchived},
		StatusDraft:      {to: StatusArchived},
		StatusInProgress: {to: StatusArchived},
		StatusFinished:   {to: StatusArchived},
		StatusArchived:   {err: ErrInvalidTransition},
	},
}

// Transition returns the status an assignment moves to when ev happens in
// status from.
func Transition(from Status, ev Event) (Status, error) {
	o, ok := transitions[ev][from]
	if !ok {
		return from, ErrInvalidTransition
	}
	if o.err != nil {
		return from, o.err
	}
	return o.to, nil
}

// Terminal reports whether no more answers are accepted in s.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusArchived
}
