package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultNegativeMarks applies to single-choice questions whose seed entry
// does not set negative_marks.
const DefaultNegativeMarks = 0.33

// ErrInvalidQuestion is returned for seed entries that cannot be graded.
var ErrInvalidQuestion = errors.New("invalid question")

// QuestionSeed is one entry of a question bank seed file.
type QuestionSeed struct {
	Text          string            `yaml:"text"`
	Type          string            `yaml:"type"`
	Options       map[string]string `yaml:"options"`
	CorrectAnswer string            `yaml:"correct_answer"`
	Marks         float64           `yaml:"marks"`
	NegativeMarks *float64          `yaml:"negative_marks"`
}

// QuestionSeedFile is the layout of a question bank seed file.
type QuestionSeedFile struct {
	Questions []QuestionSeed `yaml:"questions"`
}

// ParseQuestionSeeds decodes a YAML seed file. Unknown keys are rejected so
// typos do not silently drop fields.
func ParseQuestionSeeds(data []byte) ([]QuestionSeed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file QuestionSeedFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("%w: seed file has no questions", ErrInvalidQuestion)
	}
	return file.Questions, nil
}

// QuestionWriter is satisfied by repository.QuestionRepository.
type QuestionWriter interface {
	Create(ctx context.Context, q *model.Question) error
}

// QuestionService validates and imports questions into the bank.
type QuestionService struct {
	questionRepo QuestionWriter
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo QuestionWriter) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// BuildQuestion turns a seed entry into a gradable question. Option keys are
// upper-cased and a multi-choice answer key is stored in canonical sorted form.
func BuildQuestion(seed QuestionSeed) (*model.Question, error) {
	q := &model.Question{
		QuestionText:  strings.TrimSpace(seed.Text),
		Type:          model.QuestionType(strings.ToUpper(strings.TrimSpace(seed.Type))),
		CorrectAnswer: strings.TrimSpace(seed.CorrectAnswer),
		Marks:         seed.Marks,
	}

	if q.QuestionText == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if !q.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, seed.Type)
	}
	if q.Marks <= 0 {
		return nil, fmt.Errorf("%w: marks must be positive", ErrInvalidQuestion)
	}
	if q.CorrectAnswer == "" {
		return nil, fmt.Errorf("%w: empty correct answer", ErrInvalidQuestion)
	}

	if len(seed.Options) > 0 {
		q.Options = make(map[string]string, len(seed.Options))
		for k, v := range seed.Options {
			q.Options[strings.ToUpper(strings.TrimSpace(k))] = v
		}
	}

	switch q.Type {
	case model.QuestionTypeSingleChoice:
		q.CorrectAnswer = strings.ToUpper(q.CorrectAnswer)
		if _, ok := q.Options[q.CorrectAnswer]; !ok {
			return nil, fmt.Errorf("%w: answer %q is not an option", ErrInvalidQuestion, q.CorrectAnswer)
		}
		q.NegativeMarks = DefaultNegativeMarks
		if seed.NegativeMarks != nil {
			q.NegativeMarks = *seed.NegativeMarks
		}

	case model.QuestionTypeMultiChoice:
		keys := strings.Split(strings.ToUpper(q.CorrectAnswer), ",")
		for _, k := range keys {
			if _, ok := q.Options[strings.TrimSpace(k)]; !ok {
				return nil, fmt.Errorf("%w: answer %q is not an option", ErrInvalidQuestion, strings.TrimSpace(k))
			}
		}
		q.CorrectAnswer = model.JoinSelection(keys)
		if seed.NegativeMarks != nil {
			q.NegativeMarks = *seed.NegativeMarks
		}

	case model.QuestionTypeNumeric:
		if _, err := strconv.ParseFloat(q.CorrectAnswer, 64); err != nil {
			return nil, fmt.Errorf("%w: numeric answer %q", ErrInvalidQuestion, q.CorrectAnswer)
		}
		q.Options = nil
		if seed.NegativeMarks != nil {
			q.NegativeMarks = *seed.NegativeMarks
		}
	}

	if q.NegativeMarks < 0 {
		return nil, fmt.Errorf("%w: negative_marks is a magnitude", ErrInvalidQuestion)
	}
	return q, nil
}

// Import validates every seed entry before writing any of them. It returns
// the number of questions written.
func (s *QuestionService) Import(ctx context.Context, seeds []QuestionSeed) (int, error) {
	questions := make([]*model.Question, 0, len(seeds))
	for i, seed := range seeds {
		q, err := BuildQuestion(seed)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}

	for i, q := range questions {
		if err := s.questionRepo.Create(ctx, q); err != nil {
			return i, fmt.Errorf("create question %d: %w", i+1, err)
		}
	}
	return len(questions), nil
}
