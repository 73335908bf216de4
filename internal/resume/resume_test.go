package resume

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRenderIncludesSections(test *testing.T) {
	test.Parallel()
	renderer := mustRenderer(test)
	document := sampleDocument()

	page, err := renderer.Render(document)
	if err != nil {
		test.Fatalf("render: %v", err)
	}
	html := string(page)
	for _, expected := range []string{"Ada Lovelace", "Analytical Engine", "Go, SQL", "BSc Mathematics", "Certified Gopher"} {
		if !strings.Contains(html, expected) {
			test.Fatalf("expected %q in output", expected)
		}
	}
}

func TestRenderEscapesMarkup(test *testing.T) {
	test.Parallel()
	renderer := mustRenderer(test)
	document := sampleDocument()
	document.Objective = "<script>alert(1)</script>"

	page, err := renderer.Render(document)
	if err != nil {
		test.Fatalf("render: %v", err)
	}
	if strings.Contains(string(page), "<script>") {
		test.Fatalf("objective was not escaped")
	}
}

func TestValidateRejectsMissingSections(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name   string
		mutate func(document *Document)
	}{
		{name: "missing name", mutate: func(document *Document) { document.PersonalInfo.FullName = "" }},
		{name: "bad email", mutate: func(document *Document) { document.PersonalInfo.Email = "not-an-email" }},
		{name: "missing objective", mutate: func(document *Document) { document.Objective = "" }},
		{name: "missing education", mutate: func(document *Document) { document.Education = nil }},
		{name: "education without degree", mutate: func(document *Document) { document.Education[0].Degree = "" }},
		{name: "blank skill", mutate: func(document *Document) { document.Skills = []string{"Go", ""} }},
	}
	renderer := mustRenderer(test)
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			document := sampleDocument()
			testCase.mutate(&document)
			if _, err := renderer.Render(document); !errors.Is(err, ErrInvalidResume) {
				test.Fatalf("expected ErrInvalidResume, got %v", err)
			}
		})
	}
}

func TestEncodeUsesCamelCaseKeys(test *testing.T) {
	test.Parallel()
	encoded, err := Encode(sampleDocument())
	if err != nil {
		test.Fatalf("encode: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		test.Fatalf("decode: %v", err)
	}
	if _, ok := fields["personalInfo"]; !ok {
		test.Fatalf("expected personalInfo key in %s", encoded)
	}
}

func mustRenderer(test *testing.T) *Renderer {
	test.Helper()
	renderer, err := NewRenderer()
	if err != nil {
		test.Fatalf("renderer: %v", err)
	}
	return renderer
}

func sampleDocument() Document {
	return Document{
		PersonalInfo:   PersonalInfo{FullName: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 0000 0000"},
		Objective:      "Build reliable backend systems",
		Education:      []Education{{Degree: "BSc Mathematics", College: "University of London", StartDate: "2022", EndDate: "2026"}},
		Projects:       []Project{{ID: "p1", Title: "Analytical Engine", Description: "Notes on computation", TechStack: []string{"Go"}}},
		Experience:     []Experience{{ID: "e1", Role: "Intern", Company: "Babbage Ltd", Responsibilities: []string{"Wrote programs"}}},
		Skills:         []string{"Go", "SQL"},
		Certifications: []Certification{{ID: "c1", Name: "Certified Gopher", Year: "2025"}},
	}
}
