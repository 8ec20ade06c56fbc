package model

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultiChoice  QuestionType = "MULTI_CHOICE"
	QuestionTypeNumeric      QuestionType = "NUMERIC"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultiChoice, QuestionTypeNumeric:
		return true
	}
	return false
}

// Question is a graded item of the question bank.
// NegativeMarks is a magnitude and only applies to SINGLE_CHOICE.
type Question struct {
	ID            int64             `json:"id"`
	QuestionText  string            `json:"question_text"`
	Type          QuestionType      `json:"question_type"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectAnswer string            `json:"correct_answer"`
	Marks         float64           `json:"marks"`
	NegativeMarks float64           `json:"negative_marks"`
}

// QuestionForCandidate is a question without the correct answer, sent to candidates.
type QuestionForCandidate struct {
	ID           int64             `json:"id"`
	QuestionText string            `json:"question_text"`
	Type         QuestionType      `json:"question_type"`
	Options      map[string]string `json:"options,omitempty"`
	Marks        float64           `json:"marks"`
}

// ForCandidate strips grading data from q.
func (q Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Type:         q.Type,
		Options:      q.Options,
		Marks:        q.Marks,
	}
}
