// Package scoring grades submitted answers against the question bank.
// It performs no I/O and never fails: malformed input simply scores zero.
package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// NumericTolerance is the absolute tolerance for NUMERIC answers.
const NumericTolerance = 0.001

// Reasons reported in Result.Reason.
const (
	ReasonUnanswered = "unanswered"
	ReasonCorrect    = "correct"
	ReasonWrong      = "wrong"
	ReasonMalformed  = "malformed"
)

// Result is the outcome of grading one answer.
type Result struct {
	QuestionID int64   `json:"question_id"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
	Earned     float64 `json:"earned"`
	Reason     string  `json:"reason"`
}

// Score grades raw against q and returns the signed score.
func Score(q model.Question, raw string) Result {
	res := Result{QuestionID: q.ID, Reason: ReasonUnanswered}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return res
	}
	res.Answered = true

	switch q.Type {
	case model.QuestionTypeSingleChoice:
		return scoreSingle(q, answer, res)
	case model.QuestionTypeMultiChoice:
		return scoreMulti(q, answer, res)
	case model.QuestionTypeNumeric:
		return scoreNumeric(q, answer, res)
	default:
		res.Reason = ReasonMalformed
		return res
	}
}

// Total sums the earned scores. The total may be negative.
func Total(results []Result) float64 {
	var total float64
	for _, r := range results {
		total += r.Earned
	}
	return total
}

func scoreSingle(q model.Question, answer string, res Result) Result {
	if answer == strings.TrimSpace(q.CorrectAnswer) {
		res.Correct = true
		res.Earned = q.Marks
		res.Reason = ReasonCorrect
		return res
	}
	res.Reason = ReasonWrong
	if q.NegativeMarks > 0 {
		res.Earned = -math.Abs(q.NegativeMarks)
	}
	return res
}

func scoreMulti(q model.Question, answer string, res Result) Result {
	selected, ok := parseOptionSet(answer)
	if !ok {
		res.Reason = ReasonMalformed
		return res
	}
	correct, ok := parseOptionSet(q.CorrectAnswer)
	if !ok {
		res.Reason = ReasonMalformed
		return res
	}

	if !equalSet(selected, correct) {
		res.Reason = ReasonWrong
		return res
	}
	res.Correct = true
	res.Earned = q.Marks
	res.Reason = ReasonCorrect
	return res
}

func scoreNumeric(q model.Question, answer string, res Result) Result {
	got, err := strconv.ParseFloat(answer, 64)
	if err != nil || math.IsNaN(got) || math.IsInf(got, 0) {
		res.Reason = ReasonMalformed
		return res
	}
	want, err := strconv.ParseFloat(strings.TrimSpace(q.CorrectAnswer), 64)
	if err != nil {
		res.Reason = ReasonMalformed
		return res
	}

	if math.Abs(got-want) < NumericTolerance {
		res.Correct = true
		res.Earned = q.Marks
		res.Reason = ReasonCorrect
		return res
	}
	res.Reason = ReasonWrong
	return res
}

// parseOptionSet splits "A, c" into {"A","C"}. Empty entries and duplicates
// make the set malformed.
func parseOptionSet(raw string) (map[string]struct{}, bool) {
	parts := strings.Split(raw, ",")
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		opt := strings.ToUpper(strings.TrimSpace(p))
		if opt == "" {
			return nil, false
		}
		if _, dup := set[opt]; dup {
			return nil, false
		}
		set[opt] = struct{}{}
	}
	return set, len(set) > 0
}

func equalSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
