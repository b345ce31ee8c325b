// Package prompts renders the tutor's generation prompts from embedded
// templates. Each teaching modality has its own lesson template so the
// delivery style is fixed by the template, not by the caller.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	"github.com/pavelanni/mentor/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var templateNames = []string{
	"lesson_narrative",
	"lesson_interactive",
	"lesson_socratic",
	"lesson_visual",
	"tutor",
	"review",
	"comprehension_question",
	"recall_question",
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template, len(templateNames))
		for _, name := range templateNames {
			content, err := templateFS.ReadFile("templates/" + name + ".txt")
			if err != nil {
				loadErr = fmt.Errorf("read prompt template %s: %w", name, err)
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func render(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// LessonData holds template data for lesson and question prompts.
type LessonData struct {
	Title          string
	Description    string
	Topic          string
	Objectives     []string
	Minutes        int
	OptimalMinutes int
	AsksQuestions  bool
}

// Lesson renders the system prompt for teaching a module in the given
// modality.
func Lesson(m model.Modality, data LessonData) (string, error) {
	return render("lesson_"+string(m), data)
}

// TutorData holds template data for the conversational tutor prompt.
type TutorData struct {
	Title    string
	Topic    string
	Modality model.Modality
}

// Tutor renders the system prompt for in-session tutor chat.
func Tutor(data TutorData) (string, error) {
	return render("tutor", data)
}

// ReviewData holds template data for review session prompts.
type ReviewData struct {
	Concepts []string
}

// Review renders the prompt for a quick review of weak concepts.
func Review(data ReviewData) (string, error) {
	return render("review", data)
}

// ComprehensionQuestion renders the prompt asking for one check question
// about a module.
func ComprehensionQuestion(data LessonData) (string, error) {
	return render("comprehension_question", data)
}

// RecallQuestion renders the prompt asking for one casual recall question
// about a concept.
func RecallQuestion(concept string) (string, error) {
	return render("recall_question", struct{ Concept string }{concept})
}
