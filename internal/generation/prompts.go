package generation

import "fmt"

const noteSystemPrompt = `You are an expert note-taker. Turn the source material you are given into
clear, well-structured study notes in Markdown.

Rules:
- Use headings, bullet points and short paragraphs.
- Keep every fact from the source; do not invent facts.
- Define key terms the first time they appear.
- Output only the notes, without any preamble.`

const noteUserPrompt = "Write study notes for the following section of a longer document:"

const quizSystemPrompt = `You write multiple-choice quizzes that test understanding of study notes.
Respond with a JSON array only, with no Markdown fences and no commentary.`

// quizUserPrompt describes the exact JSON shape expected by ParseQuiz.
func quizUserPrompt(count int) string {
	return fmt.Sprintf(`Write exactly %d questions about the notes below.
Each array element must be an object with exactly these fields:
  "id": a unique string such as "q1",
  "question": the question text,
  "options": an object with exactly the keys "A", "B" and "C", each a non-empty answer,
  "correctAnswer": one of "A", "B" or "C",
  "explanation": one sentence explaining the correct answer.

Notes:`, count)
}

const summarySystemPrompt = `You condense study notes into a short summary for a reader
deciding what to review. Write plain prose, no headings or lists.`

const summaryUserPrompt = "Summarize the following notes in one to three short paragraphs:"
