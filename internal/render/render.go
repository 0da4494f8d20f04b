package render

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"github.com/natefinch/atomic"

	"github.com/pbaille/tiku/internal/domain"
)

var blankLines = regexp.MustCompile(`\n{2,}`)

var letters = map[string]string{"0": "A", "1": "B", "2": "C", "3": "D"}

// Renderer converts question HTML into cleaned markdown
type Renderer struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// New creates a Renderer
func New() *Renderer {
	return &Renderer{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Document is a rendered question sheet and its answer key
type Document struct {
	Questions string
	Answers   string
}

// String joins both parts the way they are written to disk
func (d Document) String() string {
	return d.Questions + "\n\n\n\n" + d.Answers
}

// Clean sanitizes an HTML fragment, converts it to markdown and squeezes
// blank lines
func (r *Renderer) Clean(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	md, err := r.conv.ConvertString(r.policy.Sanitize(html))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(md, "\n")), nil
}

// Render numbers questions from 1 in the given order
func (r *Renderer) Render(questions []domain.Question) (Document, error) {
	var qs, as strings.Builder

	for i := range questions {
		q := &questions[i]
		n := i + 1

		if err := r.writeQuestion(&qs, n, q); err != nil {
			return Document{}, fmt.Errorf("render question %d: %w", q.ID, err)
		}
		if err := r.writeAnswer(&as, n, q); err != nil {
			return Document{}, fmt.Errorf("render answer %d: %w", q.ID, err)
		}
	}

	return Document{Questions: qs.String(), Answers: as.String()}, nil
}

func (r *Renderer) writeQuestion(sb *strings.Builder, n int, q *domain.Question) error {
	names := make([]string, len(q.Keypoints))
	for i, kp := range q.Keypoints {
		names[i] = kp.Name
	}
	fmt.Fprintf(sb, "%d. (%s, %s)   \n", n, strings.Join(names, "/"), q.Source)

	if q.Material != nil {
		material, err := r.Clean(q.Material.Content)
		if err != nil {
			return err
		}
		sb.WriteString(material)
	}

	content, err := r.Clean(q.Content)
	if err != nil {
		return err
	}
	sb.WriteString(content)
	sb.WriteString("  \n")

	if len(q.Accessories) == 0 || len(q.Accessories[0].Options) < 4 {
		return fmt.Errorf("%w: expected 4 options", domain.ErrMalformedResponse)
	}
	for i, opt := range q.Accessories[0].Options[:4] {
		cleaned, err := r.Clean(opt)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, " %c. %s  \n", 'A'+i, cleaned)
	}

	sb.WriteString("\n\n")
	return nil
}

func (r *Renderer) writeAnswer(sb *strings.Builder, n int, q *domain.Question) error {
	if q.CorrectAnswer == nil {
		return fmt.Errorf("%w: no correct answer", domain.ErrMalformedResponse)
	}
	if q.QuestionMeta == nil || q.QuestionMeta.MostWrongAnswer == nil {
		return fmt.Errorf("%w: no answer statistics", domain.ErrMalformedResponse)
	}

	correct, err := letter(q.CorrectAnswer.Choice)
	if err != nil {
		return err
	}
	wrong, err := letter(q.QuestionMeta.MostWrongAnswer.Choice)
	if err != nil {
		return err
	}
	if q.Difficulty == "" {
		return fmt.Errorf("%w: no difficulty", domain.ErrMalformedResponse)
	}
	solution, err := r.Clean(q.Solution)
	if err != nil {
		return err
	}

	entry := fmt.Sprintf("%d. 正确答案： %s （正确率： %.0f%%， 易错项 %s，难度系数： %s）  \n%s",
		n, correct, q.QuestionMeta.CorrectRatio, wrong,
		q.Difficulty, solution)

	sb.WriteString(strings.TrimSpace(entry))
	sb.WriteString("\n\n")
	return nil
}

func letter(choice string) (string, error) {
	l, ok := letters[choice]
	if !ok {
		return "", fmt.Errorf("%w: unknown choice %q", domain.ErrMalformedResponse, choice)
	}
	return l, nil
}

// FileName is the output name for a document written at t
func FileName(t time.Time) string {
	return fmt.Sprintf("output_%d.%06d.md", t.Unix(), t.Nanosecond()/1000)
}

// WriteFile atomically writes doc into dir and returns the file path
func WriteFile(dir string, t time.Time, doc Document) (string, error) {
	path := filepath.Join(dir, FileName(t))
	if err := atomic.WriteFile(path, strings.NewReader(doc.String())); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, nil
}
