// Package resume validates structured résumés and renders them as printable HTML.
package resume

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/go-playground/validator/v10"
)

//go:embed templates/resume.html.tmpl
var templateFiles embed.FS

// ErrInvalidResume reports a résumé missing required sections.
var ErrInvalidResume = errors.New("invalid resume")

// PersonalInfo is the résumé header.
type PersonalInfo struct {
	FullName        string `json:"fullName" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"required"`
	GithubLink      string `json:"githubLink,omitempty"`
	LinkedinProfile string `json:"linkedinProfile,omitempty"`
}

// Education is one degree.
type Education struct {
	Degree    string `json:"degree" binding:"required"`
	College   string `json:"college" binding:"required"`
	CGPA      string `json:"cgpa"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Project is one portfolio project.
type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	TechStack   []string `json:"techStack"`
	GithubLink  string   `json:"githubLink,omitempty"`
}

// Experience is one position held.
type Experience struct {
	ID               string   `json:"id"`
	Role             string   `json:"role" binding:"required"`
	Company          string   `json:"company" binding:"required"`
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	Responsibilities []string `json:"responsibilities"`
}

// Certification is one earned certificate.
type Certification struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

// Document is the full structured résumé.
type Document struct {
	PersonalInfo   PersonalInfo    `json:"personalInfo" binding:"required"`
	Objective      string          `json:"objective" binding:"required"`
	Education      []Education     `json:"education" binding:"required,dive"`
	Projects       []Project       `json:"projects" binding:"dive"`
	Experience     []Experience    `json:"experience" binding:"dive"`
	Skills         []string        `json:"skills" binding:"dive,required"`
	Certifications []Certification `json:"certifications" binding:"dive"`
}

// Renderer turns documents into HTML.
type Renderer struct {
	template *template.Template
	validate *validator.Validate
}

// NewRenderer parses the embedded template.
func NewRenderer() (*Renderer, error) {
	parsed, err := template.New("resume.html.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFiles, "templates/resume.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse resume template: %w", err)
	}
	validate := validator.New()
	validate.SetTagName("binding")
	return &Renderer{template: parsed, validate: validate}, nil
}

// Validate checks the required sections.
func (renderer *Renderer) Validate(document Document) error {
	if err := renderer.validate.Struct(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResume, err)
	}
	return nil
}

// Render validates document and writes the HTML page.
func (renderer *Renderer) Render(document Document) ([]byte, error) {
	if err := renderer.Validate(document); err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := renderer.template.Execute(&buffer, document); err != nil {
		return nil, fmt.Errorf("render resume: %w", err)
	}
	return buffer.Bytes(), nil
}

// Encode serializes the document for storage on the student profile.
func Encode(document Document) ([]byte, error) {
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode resume: %w", err)
	}
	return encoded, nil
}
