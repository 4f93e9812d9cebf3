// Package bank holds the read-only question bank: subjects own topics, topics
// own ordered questions.
package bank

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
)

// Question is a single multiple-choice question. ID is its 1-based position
// inside the topic, assigned at load time.
type Question struct {
	ID      int      `json:"id,omitempty"`
	Prompt  string   `json:"pregunta"`
	Options []string `json:"opciones"`
	Correct int      `json:"correcta"`
}

// IsCorrect reports whether option is the correct answer. Negative options
// never match.
func (q Question) IsCorrect(option int) bool {
	return option >= 0 && option == q.Correct
}

// Document is the persisted bank layout: subject -> topic -> questions.
type Document map[string]map[string][]Question

// Topic is a named question list owned by a subject.
type Topic struct {
	Subject   string
	Name      string
	Questions []Question
}

// Key returns the topic's "<subject>/<topic>" key.
func (t Topic) Key() string { return TopicKey(t.Subject, t.Name) }

// TopicKey joins subject and topic into a key.
func TopicKey(subject, topic string) string { return subject + "/" + topic }

// SplitKey splits a topic key at its first slash.
func SplitKey(key string) (subject, topic string, ok bool) {
	subject, topic, ok = strings.Cut(key, "/")
	if !ok || subject == "" || topic == "" {
		return "", "", false
	}
	return subject, topic, true
}

// Bank is an immutable view over a Document.
type Bank struct {
	doc Document
}

// New copies doc and numbers every topic's questions from 1.
func New(doc Document) *Bank {
	out := make(Document, len(doc))
	for subject, topics := range doc {
		ts := make(map[string][]Question, len(topics))
		for name, qs := range topics {
			cp := slices.Clone(qs)
			for i := range cp {
				cp[i].ID = i + 1
				cp[i].Options = slices.Clone(cp[i].Options)
			}
			ts[name] = cp
		}
		out[subject] = ts
	}
	return &Bank{doc: out}
}

// Parse decodes a bank from JSON.
func Parse(data []byte) (*Bank, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bank: decode: %w", err)
	}
	return New(doc), nil
}

// Load reads and parses the bank file at path.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bank: read %s: %w", path, err)
	}
	return Parse(data)
}

// Document returns the bank in its persisted layout.
func (b *Bank) Document() Document {
	return b.doc
}

// Subjects returns subject names in alphabetical order.
func (b *Bank) Subjects() []string {
	out := make([]string, 0, len(b.doc))
	for s := range b.doc {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Topics returns the subject's topic names in alphabetical order.
func (b *Bank) Topics(subject string) []string {
	topics := b.doc[subject]
	out := make([]string, 0, len(topics))
	for t := range topics {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Topic looks a topic up by subject and name.
func (b *Bank) Topic(subject, name string) (Topic, bool) {
	qs, ok := b.doc[subject][name]
	if !ok {
		return Topic{}, false
	}
	return Topic{Subject: subject, Name: name, Questions: qs}, true
}

// Lookup resolves a "<subject>/<topic>" key.
func (b *Bank) Lookup(key string) (Topic, bool) {
	subject, name, ok := SplitKey(key)
	if !ok {
		return Topic{}, false
	}
	return b.Topic(subject, name)
}

// Keys returns every topic key, sorted.
func (b *Bank) Keys() []string {
	var out []string
	for _, s := range b.Subjects() {
		for _, t := range b.Topics(s) {
			out = append(out, TopicKey(s, t))
		}
	}
	return out
}

// Len returns the total number of questions.
func (b *Bank) Len() int {
	n := 0
	for _, topics := range b.doc {
		for _, qs := range topics {
			n += len(qs)
		}
	}
	return n
}

// Shuffle returns a uniformly shuffled copy of qs (Fisher–Yates). intn picks
// an index in [0, n); nil uses math/rand/v2.
func Shuffle(qs []Question, intn func(n int) int) []Question {
	if intn == nil {
		intn = rand.IntN
	}
	out := slices.Clone(qs)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
