package reporter

import (
	"strings"
	"testing"
)

func TestToMarkdownFailurePath(t *testing.T) {
	yamlResult := `
grade: 3
max-grade: 5
groups:
  - grade: 1
    max-grade: 2
    description: "group 1"
    tests:
      - description: "t1"
        coefficient: 1
        success: false
      - description: "t2"
        coefficient: 2
        success: true
`
	md, err := ToMarkdown("lab1", yamlResult)
	if err != nil {
		t.Fatalf("ToMarkdown: %v", err)
	}
	if md.Grade != 3 || md.MaxGrade != 5 {
		t.Fatalf("grade = %d/%d, want 3/5", md.Grade, md.MaxGrade)
	}
	if md.Passed() {
		t.Error("Passed() = true, want false for 3/5")
	}
	if !strings.Contains(md.Body, "t1") {
		t.Error("body should mention failing test t1")
	}
	if strings.Contains(md.Body, "t2") {
		t.Error("body should not mention passing test t2")
	}
}

func TestToMarkdownExplanationPath(t *testing.T) {
	yamlResult := `
grade: 0
max-grade: 1
explanation: "boom"
`
	md, err := ToMarkdown("lab1", yamlResult)
	if err != nil {
		t.Fatalf("ToMarkdown: %v", err)
	}
	if md.Grade != 0 || md.MaxGrade != 1 {
		t.Fatalf("grade = %d/%d, want 0/1", md.Grade, md.MaxGrade)
	}
	if !strings.Contains(md.Body, "boom") {
		t.Error("body should contain the explanation text")
	}
}

func TestToMarkdownAllGroupsPassing(t *testing.T) {
	yamlResult := `
grade: 2
max-grade: 2
groups:
  - grade: 2
    max-grade: 2
    description: "group 1"
    tests:
      - description: "t1"
        coefficient: 1
        success: true
`
	md, err := ToMarkdown("lab1", yamlResult)
	if err != nil {
		t.Fatalf("ToMarkdown: %v", err)
	}
	if !md.Passed() {
		t.Error("Passed() = false, want true for 2/2")
	}
}

func TestSignalToExplanation(t *testing.T) {
	cases := map[int]string{
		4:  "illegal instruction",
		6:  "abort, possibly because of a failed assertion",
		8:  "arithmetic exception",
		9:  "program killed, possibly because of an infinite loop or memory exhaustion",
		10: "bus error",
		11: "segmentation fault",
	}
	for signal, want := range cases {
		if got := signalToExplanation(signal); got != want {
			t.Errorf("signalToExplanation(%d) = %q, want %q", signal, got, want)
		}
	}
	if got := signalToExplanation(99); got != "crash (signal 99)" {
		t.Errorf("signalToExplanation(99) = %q, want fallback", got)
	}
}
