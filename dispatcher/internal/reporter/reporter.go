// Package reporter turns a YAML grading report into a grade and a
// markdown write-up, suitable for posting as a commit status/comment.
package reporter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Report is the top-level grading report a test run produces.
type Report struct {
	Grade       int     `yaml:"grade"`
	MaxGrade    int     `yaml:"max-grade"`
	Explanation *string `yaml:"explanation"`
	Groups      []Group `yaml:"groups"`
}

// Group is one named collection of tests within a report.
type Group struct {
	Grade       int    `yaml:"grade"`
	MaxGrade    int    `yaml:"max-grade"`
	Description string `yaml:"description"`
	Tests       []Test `yaml:"tests"`
}

// Test is a single graded assertion.
type Test struct {
	Coefficient int    `yaml:"coefficient"`
	Description string `yaml:"description"`
	Success     bool   `yaml:"success"`
	Signal      *int   `yaml:"signal"`
}

var signalExplanations = map[int]string{
	4:  "illegal instruction",
	6:  "abort, possibly because of a failed assertion",
	8:  "arithmetic exception",
	9:  "program killed, possibly because of an infinite loop or memory exhaustion",
	10: "bus error",
	11: "segmentation fault",
}

func signalToExplanation(signal int) string {
	if e, ok := signalExplanations[signal]; ok {
		return e
	}
	return fmt.Sprintf("crash (signal %d)", signal)
}

// Markdown is the result of rendering a report to prose.
type Markdown struct {
	Body     string
	Grade    int
	MaxGrade int
}

// Passed reports whether every point was earned.
func (m Markdown) Passed() bool { return m.Grade == m.MaxGrade }

// ToMarkdown decodes yamlResult as a Report and renders it to markdown
// describing lab's failing groups and tests, or the report's top-level
// explanation if the test run itself failed to produce one.
func ToMarkdown(lab, yamlResult string) (Markdown, error) {
	var report Report
	if err := yaml.Unmarshal([]byte(yamlResult), &report); err != nil {
		return Markdown{}, fmt.Errorf("reporter: decode yaml: %w", err)
	}

	if report.Explanation != nil {
		body := fmt.Sprintf("## Error\n\nThere has been an error during the test for %s:\n\n```\n%s\n```",
			lab, *report.Explanation)
		return Markdown{Body: body, Grade: report.Grade, MaxGrade: report.MaxGrade}, nil
	}

	var groups []string
	for _, g := range report.Groups {
		if g.Grade == g.MaxGrade {
			continue
		}
		groups = append(groups, renderGroup(g))
	}

	body := fmt.Sprintf("## Failed tests report for %s (%s)\n\n%s",
		lab, passFail(report.Grade, report.MaxGrade), strings.Join(groups, "\n"))
	return Markdown{Body: body, Grade: report.Grade, MaxGrade: report.MaxGrade}, nil
}

func renderGroup(g Group) string {
	description := g.Description
	if description == "" {
		description = "*Test group*"
	}

	var tests string
	if g.Grade != 0 {
		var lines []string
		for _, t := range g.Tests {
			if t.Success {
				continue
			}
			line := "- " + t.Description
			if t.Coefficient != 1 {
				line += fmt.Sprintf(" (coefficient %d)", t.Coefficient)
			}
			if t.Signal != nil {
				line += fmt.Sprintf(" [%s]", signalToExplanation(*t.Signal))
			}
			lines = append(lines, line)
		}
		tests = "Failing tests:\n\n" + strings.Join(lines, "\n")
	}

	return fmt.Sprintf("### %s (%s)\n\n%s\n", description, passFail(g.Grade, g.MaxGrade), tests)
}

func passFail(grade, maxGrade int) string {
	switch {
	case grade > maxGrade:
		return fmt.Sprintf("%d passing out of %d [!]", grade, maxGrade)
	case grade == maxGrade:
		return fmt.Sprintf("all %d passing", maxGrade)
	case grade == 0:
		return fmt.Sprintf("all %d failing", maxGrade)
	default:
		return fmt.Sprintf("%d failing out of %d", maxGrade-grade, maxGrade)
	}
}
