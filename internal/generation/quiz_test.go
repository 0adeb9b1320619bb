package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quizJSON(n int) string {
	questions := make([]map[string]any, n)
	for i := range questions {
		questions[i] = map[string]any{
			"id":            fmt.Sprintf("q%d", i+1),
			"question":      fmt.Sprintf("Question %d?", i+1),
			"options":       map[string]string{"A": "one", "B": "two", "C": "three"},
			"correctAnswer": "B",
			"explanation":   "Two is right.",
		}
	}
	b, _ := json.Marshal(questions)
	return string(b)
}

// requestedCount reads the question count out of the quiz prompt.
func requestedCount(t *testing.T, req Request) int {
	t.Helper()
	var n int
	_, err := fmt.Sscanf(req.UserPrompt, "Write exactly %d questions", &n)
	require.NoError(t, err)
	return n
}

func TestQuizGeneratorQuestionCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length int
		want   int
	}{
		{1500, 10},
		{2500, 15},
		{4000, 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("length %d", tt.length), func(t *testing.T) {
			t.Parallel()
			client := &recordingClient{}
			client.respond = func(_ int, req Request) (string, error) {
				return quizJSON(requestedCount(t, req)), nil
			}
			g, err := NewQuizGenerator(client, testOptions(), testLogger())
			require.NoError(t, err)

			quiz, err := g.Generate(context.Background(), strings.Repeat("x", tt.length))
			require.NoError(t, err)
			require.Len(t, quiz, tt.want)
			for _, q := range quiz {
				assert.NotEmpty(t, q.Options.A)
				assert.NotEmpty(t, q.Options.B)
				assert.NotEmpty(t, q.Options.C)
				assert.Contains(t, []string{"A", "B", "C"}, q.CorrectAnswer)
			}
			assert.Equal(t, QuizTemperature, client.Requests()[0].Temperature)
		})
	}
}

func TestQuizGeneratorRetriesMalformedOutput(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	client.respond = func(call int, req Request) (string, error) {
		if call == 1 {
			return `[{"id":"q1","question":"?","options":{"A":"a","B":"b"},"correctAnswer":"A","explanation":""}]`, nil
		}
		return "```json\n" + quizJSON(requestedCount(t, req)) + "\n```", nil
	}
	g, err := NewQuizGenerator(client, testOptions(), testLogger())
	require.NoError(t, err)

	quiz, err := g.Generate(context.Background(), "short notes")
	require.NoError(t, err)
	assert.Len(t, quiz, 10)
	assert.Equal(t, 2, client.Calls())
}

func TestQuizGeneratorExhaustedReturnsEmptyQuiz(t *testing.T) {
	t.Parallel()

	client := &recordingClient{respond: func(int, Request) (string, error) {
		return "I cannot do that", nil
	}}
	g, err := NewQuizGenerator(client, testOptions(), testLogger())
	require.NoError(t, err)

	quiz, err := g.Generate(context.Background(), "notes")
	require.ErrorIs(t, err, ErrQuizUnavailable)
	assert.ErrorIs(t, err, domain.ErrMalformedQuiz)
	assert.NotNil(t, quiz)
	assert.Empty(t, quiz)
	assert.Equal(t, 3, client.Calls())
}

func TestQuizGeneratorStopsOnTerminalError(t *testing.T) {
	t.Parallel()

	client := &recordingClient{respond: func(int, Request) (string, error) {
		return "", &ServiceError{Kind: KindBadRequest, Err: errors.New("prompt too long")}
	}}
	g, err := NewQuizGenerator(client, testOptions(), testLogger())
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "notes")
	require.ErrorIs(t, err, ErrQuizUnavailable)
	assert.Equal(t, 1, client.Calls())
}

func TestParseQuiz(t *testing.T) {
	t.Parallel()

	one := func(mutate func(q map[string]any)) string {
		q := map[string]any{
			"id":            "q1",
			"question":      "Which?",
			"options":       map[string]string{"A": "a", "B": "b", "C": "c"},
			"correctAnswer": "C",
			"explanation":   "c is right",
		}
		if mutate != nil {
			mutate(q)
		}
		b, _ := json.Marshal([]map[string]any{q})
		return string(b)
	}

	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{name: "plain array", text: one(nil)},
		{name: "fenced", text: "```json\n" + one(nil) + "\n```"},
		{name: "bare fence", text: "```\n" + one(nil) + "\n```"},
		{name: "extra option", text: one(func(q map[string]any) {
			q["options"] = map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"}
		}), wantErr: true},
		{name: "missing option", text: one(func(q map[string]any) {
			q["options"] = map[string]string{"A": "a", "C": "c"}
		}), wantErr: true},
		{name: "empty option", text: one(func(q map[string]any) {
			q["options"] = map[string]string{"A": "a", "B": "", "C": "c"}
		}), wantErr: true},
		{name: "answer outside options", text: one(func(q map[string]any) { q["correctAnswer"] = "D" }), wantErr: true},
		{name: "numeric id", text: one(func(q map[string]any) { q["id"] = 1 }), wantErr: true},
		{name: "unknown field", text: one(func(q map[string]any) { q["difficulty"] = "hard" }), wantErr: true},
		{name: "not json", text: "Here is your quiz!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			quiz, err := ParseQuiz(tt.text, 1)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrMalformedQuiz)
				assert.Nil(t, quiz)
				return
			}
			require.NoError(t, err)
			require.Len(t, quiz, 1)
			assert.Equal(t, domain.QuizOptions{A: "a", B: "b", C: "c"}, quiz[0].Options)
			assert.Equal(t, "C", quiz[0].CorrectAnswer)
		})
	}
}
