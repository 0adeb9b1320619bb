package domain

import (
	"fmt"
	"strings"
)

// Answer letters a quiz question may use.
const (
	AnswerA = "A"
	AnswerB = "B"
	AnswerC = "C"
)

// QuizOptions holds the three answer choices of a question.
type QuizOptions struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
}

// QuizQuestion is one multiple-choice question.
type QuizQuestion struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	Options       QuizOptions `json:"options"`
	CorrectAnswer string      `json:"correctAnswer"`
	Explanation   string      `json:"explanation"`
}

// Quiz is an ordered sequence of questions.
type Quiz []QuizQuestion

// Quiz length thresholds, measured in characters of combined notes.
const (
	shortContentLimit  = 2000
	mediumContentLimit = 3000
)

// QuestionCountFor returns how many questions to generate for content of
// the given length: 10 up to 2000 characters, 15 up to 3000, else 20.
func QuestionCountFor(length int) int {
	switch {
	case length <= shortContentLimit:
		return 10
	case length <= mediumContentLimit:
		return 15
	default:
		return 20
	}
}

// Validate checks every question. A quiz is accepted whole or not at all.
func (q Quiz) Validate(want int) error {
	if len(q) != want {
		return fmt.Errorf("%w: expected %d questions, got %d", ErrMalformedQuiz, want, len(q))
	}
	seen := make(map[string]struct{}, len(q))
	for i, question := range q {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrMalformedQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}
	}
	return nil
}

// Validate checks that the question has text, an id, three populated
// options and a correct answer drawn from them.
func (q QuizQuestion) Validate() error {
	switch {
	case strings.TrimSpace(q.ID) == "":
		return fmt.Errorf("%w: missing id", ErrMalformedQuiz)
	case strings.TrimSpace(q.Question) == "":
		return fmt.Errorf("%w: missing question text", ErrMalformedQuiz)
	case strings.TrimSpace(q.Options.A) == "",
		strings.TrimSpace(q.Options.B) == "",
		strings.TrimSpace(q.Options.C) == "":
		return fmt.Errorf("%w: every option A, B and C must be populated", ErrMalformedQuiz)
	}
	switch q.CorrectAnswer {
	case AnswerA, AnswerB, AnswerC:
		return nil
	}
	return fmt.Errorf("%w: correct answer %q is not one of A, B, C", ErrMalformedQuiz, q.CorrectAnswer)
}
