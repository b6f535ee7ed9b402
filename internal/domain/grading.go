package domain

import (
	"fmt"
	"strings"
)

// IsCorrect grades a single answer. Blank answers are always wrong, multiple
// choice compares exactly, true/false and fill-in-the-blank ignore case, and
// fill-in-the-blank also ignores surrounding whitespace on both sides.
// Unknown kinds grade as incorrect.
func IsCorrect(q Question, userAnswer string) bool {
	if strings.TrimSpace(userAnswer) == "" {
		return false
	}
	switch q.Kind {
	case KindMultipleChoice:
		return userAnswer == q.CorrectAnswer
	case KindTrueFalse:
		return strings.EqualFold(userAnswer, q.CorrectAnswer)
	case KindFillBlank:
		return strings.EqualFold(strings.TrimSpace(userAnswer), strings.TrimSpace(q.CorrectAnswer))
	default:
		return false
	}
}

// AggregatePercentage is sum(score)/sum(total)*100 across records.
func AggregatePercentage(records []ScoreRecord) float64 {
	var score, total int
	for _, r := range records {
		score += r.Score
		total += r.Total
	}
	if total == 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// ValidateQuestion applies the authoring rules and returns a normalized copy:
// trimmed text, choices only for multiple choice, true/false answers as
// "True"/"False".
func ValidateQuestion(q Question) (Question, error) {
	q.Prompt = strings.TrimSpace(q.Prompt)
	q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	if q.Prompt == "" || q.CorrectAnswer == "" {
		return Question{}, fmt.Errorf("%w: question prompt and answer are required", ErrValidation)
	}

	switch q.Kind {
	case KindMultipleChoice:
		choices := make([]string, 0, len(q.Choices))
		for _, c := range q.Choices {
			if c = strings.TrimSpace(c); c != "" {
				choices = append(choices, c)
			}
		}
		if len(choices) < 2 {
			return Question{}, fmt.Errorf("%w: multiple choice questions need at least 2 choices", ErrValidation)
		}
		found := false
		for _, c := range choices {
			if c == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return Question{}, fmt.Errorf("%w: answer %q is not one of the choices", ErrValidation, q.CorrectAnswer)
		}
		q.Choices = choices
	case KindTrueFalse:
		switch strings.ToLower(q.CorrectAnswer) {
		case "true":
			q.CorrectAnswer = "True"
		case "false":
			q.CorrectAnswer = "False"
		default:
			return Question{}, fmt.Errorf("%w: true/false answer must be True or False", ErrValidation)
		}
		q.Choices = nil
	case KindFillBlank:
		q.Choices = nil
	default:
		return Question{}, fmt.Errorf("%w: unknown question kind %q", ErrValidation, q.Kind)
	}
	return q, nil
}
