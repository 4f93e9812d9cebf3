package bank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/quizbot/core/telegram/callbacks"
)

// Issue describes one problem found by Validate.
type Issue struct {
	Topic    string
	Question int
	Message  string
	// Warning issues do not make the bank unusable.
	Warning bool
}

func (i Issue) String() string {
	level := "error"
	if i.Warning {
		level = "warning"
	}
	if i.Question > 0 {
		return fmt.Sprintf("%s: %s #%d: %s", level, i.Topic, i.Question, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", level, i.Topic, i.Message)
}

// Validate checks every topic: names usable in callback data, at least one
// question, at least two options and a correct index in range.
func (b *Bank) Validate() []Issue {
	var issues []Issue
	for _, subject := range b.Subjects() {
		if strings.Contains(subject, callbacks.Sep) || strings.Contains(subject, "/") {
			issues = append(issues, Issue{Topic: subject, Message: "subject name must not contain ':' or '/'"})
		}
		for _, name := range b.Topics(subject) {
			key := TopicKey(subject, name)
			for _, data := range []string{
				callbacks.Data("topico", subject, name),
				callbacks.Data("reanudar", key),
			} {
				if len(data) > callbacks.MaxDataLen {
					issues = append(issues, Issue{
						Topic:   key,
						Message: fmt.Sprintf("callback data %q exceeds %d bytes; its button will be rejected", data, callbacks.MaxDataLen),
						Warning: true,
					})
					break
				}
			}

			qs := b.doc[subject][name]
			if len(qs) == 0 {
				issues = append(issues, Issue{Topic: key, Message: "topic has no questions"})
			}
			for _, q := range qs {
				if strings.TrimSpace(q.Prompt) == "" {
					issues = append(issues, Issue{Topic: key, Question: q.ID, Message: "empty prompt"})
				}
				if len(q.Options) < 2 {
					issues = append(issues, Issue{Topic: key, Question: q.ID, Message: "needs at least two options"})
				}
				if q.Correct < 0 || q.Correct >= len(q.Options) {
					issues = append(issues, Issue{
						Topic:    key,
						Question: q.ID,
						Message:  "correct option " + strconv.Itoa(q.Correct) + " out of range",
					})
				}
			}
		}
	}
	return issues
}

// HasErrors reports whether any issue is not a warning.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if !i.Warning {
			return true
		}
	}
	return false
}
