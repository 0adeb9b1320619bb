package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// QuizTemperature favors consistent, well-formed quiz output.
const QuizTemperature float32 = 0.3

// QuizGenerator builds a multiple-choice quiz from aggregated notes.
type QuizGenerator struct {
	client Client
	opts   Options
	logger *slog.Logger
}

// NewQuizGenerator creates a QuizGenerator with validated dependencies.
func NewQuizGenerator(client Client, opts Options, logger *slog.Logger) (*QuizGenerator, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizGenerator{
		client: client,
		opts:   opts,
		logger: logger.With("component", "quiz_generator"),
	}, nil
}

// Generate asks for domain.QuestionCountFor(len(notes)) questions and
// accepts the response only if it parses into exactly that many valid
// questions. Malformed output is retried like any other failure. When
// every attempt fails, Generate returns an empty quiz and an error wrapping
// ErrQuizUnavailable.
func (g *QuizGenerator) Generate(ctx context.Context, notes string) (domain.Quiz, error) {
	count := domain.QuestionCountFor(utf8.RuneCountInString(notes))
	req := Request{
		SystemPrompt: quizSystemPrompt,
		UserPrompt:   quizUserPrompt(count),
		Content:      notes,
		Temperature:  QuizTemperature,
	}

	var quiz domain.Quiz
	attempts, err := g.opts.Retry.Do(ctx, g.logger, "quiz", func(ctx context.Context, _ int) error {
		text, err := call(ctx, g.client, g.opts, req)
		if err != nil {
			return err
		}
		parsed, err := ParseQuiz(text, count)
		if err != nil {
			return err
		}
		quiz = parsed
		return nil
	})
	if err != nil {
		g.logger.Error("quiz generation exhausted retries", "attempts", attempts, "error", err)
		return domain.Quiz{}, fmt.Errorf("%w after %d attempts: %w", ErrQuizUnavailable, attempts, err)
	}
	return quiz, nil
}

type rawQuestion struct {
	ID            string            `json:"id"`
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer"`
	Explanation   string            `json:"explanation"`
}

var optionKeys = []string{domain.AnswerA, domain.AnswerB, domain.AnswerC}

// ParseQuiz decodes a JSON array of questions, tolerating a surrounding
// Markdown code fence, and validates it against the expected count.
// Unknown fields and options other than A, B and C are rejected.
func ParseQuiz(text string, want int) (domain.Quiz, error) {
	body := stripCodeFence(text)

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var raw []rawQuestion
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedQuiz, err)
	}

	quiz := make(domain.Quiz, 0, len(raw))
	for i, q := range raw {
		keys := make([]string, 0, len(q.Options))
		for k := range q.Options {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		if !slices.Equal(keys, optionKeys) {
			return nil, fmt.Errorf("%w: question %d has options %v, want A, B, C", domain.ErrMalformedQuiz, i, keys)
		}
		quiz = append(quiz, domain.QuizQuestion{
			ID:            q.ID,
			Question:      q.Question,
			Options:       domain.QuizOptions{A: q.Options[domain.AnswerA], B: q.Options[domain.AnswerB], C: q.Options[domain.AnswerC]},
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}

	if err := quiz.Validate(want); err != nil {
		return nil, err
	}
	return quiz, nil
}

// stripCodeFence removes a leading ```json (or bare ```) fence and its
// closing fence.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
