package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion(id string) QuizQuestion {
	return QuizQuestion{
		ID:            id,
		Question:      "What is chunked?",
		Options:       QuizOptions{A: "Words", B: "Bytes", C: "Pages"},
		CorrectAnswer: AnswerA,
		Explanation:   "Content is split on words.",
	}
}

func TestQuestionCountFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length int
		want   int
	}{
		{0, 10},
		{1500, 10},
		{2000, 10},
		{2001, 15},
		{2500, 15},
		{3000, 15},
		{3001, 20},
		{4000, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuestionCountFor(tt.length), "length %d", tt.length)
	}
}

func TestQuizValidate(t *testing.T) {
	t.Parallel()

	build := func(n int, mutate func(q *QuizQuestion)) Quiz {
		quiz := make(Quiz, n)
		for i := range quiz {
			quiz[i] = validQuestion(fmt.Sprintf("q%d", i+1))
		}
		if mutate != nil {
			mutate(&quiz[n-1])
		}
		return quiz
	}

	tests := []struct {
		name    string
		quiz    Quiz
		want    int
		wantErr bool
	}{
		{name: "valid", quiz: build(10, nil), want: 10},
		{name: "wrong count", quiz: build(9, nil), want: 10, wantErr: true},
		{name: "missing option", quiz: build(10, func(q *QuizQuestion) { q.Options.C = " " }), want: 10, wantErr: true},
		{name: "answer outside options", quiz: build(10, func(q *QuizQuestion) { q.CorrectAnswer = "D" }), want: 10, wantErr: true},
		{name: "lowercase answer", quiz: build(10, func(q *QuizQuestion) { q.CorrectAnswer = "a" }), want: 10, wantErr: true},
		{name: "missing id", quiz: build(10, func(q *QuizQuestion) { q.ID = "" }), want: 10, wantErr: true},
		{name: "duplicate id", quiz: build(10, func(q *QuizQuestion) { q.ID = "q1" }), want: 10, wantErr: true},
		{name: "missing question", quiz: build(10, func(q *QuizQuestion) { q.Question = "" }), want: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.quiz.Validate(tt.want)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedQuiz)
				return
			}
			require.NoError(t, err)
		})
	}
}
