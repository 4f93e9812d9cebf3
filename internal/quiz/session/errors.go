package session

import (
	"errors"
	"fmt"
)

// Reason names why an operation was refused.
type Reason string

const (
	ReasonCourseInactive   Reason = "course_inactive"
	ReasonCapacity         Reason = "capacity_reached"
	ReasonAlreadyInSession Reason = "already_in_session"
	ReasonInvalidTopic     Reason = "invalid_topic"
	ReasonAlreadyFinished  Reason = "already_finished"
	ReasonNotPaused        Reason = "not_paused"
	ReasonNoSession        Reason = "no_session"
)

// Rejection is a guard failure. Nothing was mutated when one is returned.
type Rejection struct {
	Reason Reason
	Topic  string
}

func (r *Rejection) Error() string {
	if r.Topic != "" {
		return fmt.Sprintf("session: %s (%s)", r.Reason, r.Topic)
	}
	return "session: " + string(r.Reason)
}

// Code returns the reason as an error code.
func (r *Rejection) Code() string { return string(r.Reason) }

func reject(reason Reason, topic string) *Rejection {
	return &Rejection{Reason: reason, Topic: topic}
}

// AsRejection unwraps a *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
