package bank

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "Física": {
    "Cinemática": [
      {"pregunta": "¿Unidad de velocidad?", "opciones": ["m/s", "kg", "N"], "correcta": 0},
      {"pregunta": "¿Unidad de aceleración?", "opciones": ["m/s", "m/s²"], "correcta": 1},
      {"pregunta": "¿Qué es MRU?", "opciones": ["Uniforme", "Acelerado"], "correcta": 0}
    ],
    "Dinámica": [
      {"pregunta": "¿Segunda ley?", "opciones": ["F=ma", "E=mc²"], "correcta": 0}
    ]
  },
  "Álgebra": {"Vectores": []}
}`

func TestParseAssignsIDsAndSortsMenus(t *testing.T) {
	b, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"Física", "Álgebra"}, b.Subjects())
	assert.Equal(t, []string{"Cinemática", "Dinámica"}, b.Topics("Física"))
	assert.Equal(t, 4, b.Len())

	topic, ok := b.Lookup("Física/Cinemática")
	require.True(t, ok)
	assert.Equal(t, "Física/Cinemática", topic.Key())
	for i, q := range topic.Questions {
		assert.Equal(t, i+1, q.ID)
	}

	_, ok = b.Lookup("Física")
	assert.False(t, ok)
	_, ok = b.Lookup("Química/Gases")
	assert.False(t, ok)
}

func TestShuffleIsPermutation(t *testing.T) {
	b, err := Parse([]byte(sample))
	require.NoError(t, err)
	topic, _ := b.Lookup("Física/Cinemática")

	shuffled := Shuffle(topic.Questions, func(n int) int { return 0 })
	require.Len(t, shuffled, len(topic.Questions))
	assert.NotEqual(t, topic.Questions[0].ID, shuffled[0].ID)

	sorted := slices.Clone(shuffled)
	slices.SortFunc(sorted, func(a, b Question) int { return a.ID - b.ID })
	assert.Equal(t, topic.Questions, sorted)

	// the bank's own slice is untouched
	again, _ := b.Lookup("Física/Cinemática")
	assert.Equal(t, 1, again.Questions[0].ID)

	for i := 0; i < 20; i++ {
		s := Shuffle(topic.Questions, nil)
		slices.SortFunc(s, func(a, b Question) int { return a.ID - b.ID })
		assert.Equal(t, topic.Questions, s)
	}
}

func TestIsCorrectRejectsSentinel(t *testing.T) {
	q := Question{Options: []string{"a", "b"}, Correct: 0}
	assert.True(t, q.IsCorrect(0))
	assert.False(t, q.IsCorrect(1))
	assert.False(t, q.IsCorrect(-1))
}

func TestValidate(t *testing.T) {
	physics := map[string][]Question{
		"Cinemática": {{Prompt: "ok", Options: []string{"a", "b"}, Correct: 1}},
		"Ondas":      {{Prompt: "", Options: []string{"a"}, Correct: 3}},
	}
	physics[strings.Repeat("x", 60)] = []Question{{Prompt: "p", Options: []string{"a", "b"}}}
	doc := Document{
		"Física":     physics,
		"Mal:Nombre": {"T": {}},
	}
	issues := New(doc).Validate()
	require.True(t, HasErrors(issues))

	var msgs []string
	for _, i := range issues {
		msgs = append(msgs, i.String())
	}
	joined := strings.Join(msgs, "\n")
	assert.Contains(t, joined, "error: Física/Ondas #1: empty prompt")
	assert.Contains(t, joined, "error: Física/Ondas #1: needs at least two options")
	assert.Contains(t, joined, "error: Física/Ondas #1: correct option 3 out of range")
	assert.Contains(t, joined, "warning: Física/xxxx")
	assert.Contains(t, joined, "error: Mal:Nombre: subject name must not contain")
	assert.Contains(t, joined, "error: Mal:Nombre/T: topic has no questions")
	assert.NotContains(t, joined, "Cinemática")

	assert.False(t, HasErrors([]Issue{{Warning: true}}))
}

func TestSplitKey(t *testing.T) {
	s, tp, ok := SplitKey("Física/Ondas/Sonido")
	require.True(t, ok)
	assert.Equal(t, "Física", s)
	assert.Equal(t, "Ondas/Sonido", tp)

	_, _, ok = SplitKey("/x")
	assert.False(t, ok)
}
