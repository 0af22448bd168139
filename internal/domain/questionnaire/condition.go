package questionnaire

import (
	"errors"
	"fmt"
)

type ConditionType string

const (
	Greater      ConditionType = "GREATER"
	GreaterEqual ConditionType = "GREATER_EQUAL"
	Less         ConditionType = "LESS"
	LessEqual    ConditionType = "LESS_EQUAL"
	Equal        ConditionType = "EQUAL"
	NotEqual     ConditionType = "NOT_EQUAL"
)

// ErrInvalidCondition means a stored condition kind is not one of the six
// known operators. It is a programming error, not a client error.
var ErrInvalidCondition = errors.New("invalid condition type")

func (t ConditionType) Valid() bool {
	switch t {
	case Greater, GreaterEqual, Less, LessEqual, Equal, NotEqual:
		return true
	}
	return false
}

// Evaluate compares actual against the expected threshold.
func Evaluate(kind ConditionType, expected, actual int) (bool, error) {
	switch kind {
	case Greater:
		return actual > expected, nil
	case GreaterEqual:
		return actual >= expected, nil
	case Less:
		return actual < expected, nil
	case LessEqual:
		return actual <= expected, nil
	case Equal:
		return actual == expected, nil
	case NotEqual:
		return actual != expected, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidCondition, kind)
}
