package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

func testScope() *Scope {
	s := NewScope(map[string]string{
		"environment": "prod",
		"count":       "3",
	})
	s.AddResult(&domain.RunResult{
		JobName:  "scan",
		Status:   domain.JobStatusSuccess,
		ExitCode: 0,
		Outputs:  map[string]string{"report": "ready", "total": "12"},
	})
	s.AddResult(&domain.RunResult{
		JobName:  "gate",
		Status:   domain.JobStatusFailure,
		ExitCode: 99,
	})
	return s
}

func TestEvalCondition(t *testing.T) {
	s := testScope()

	cases := []struct {
		name string
		src  string
		want bool
	}{
		{"empty condition is true", "", true},
		{"literal true", "true", true},
		{"literal false", "false", false},
		{"input equality", "inputs.environment == 'prod'", true},
		{"input inequality", "inputs.environment != 'dev'", true},
		{"numeric string compares numerically", "inputs.count == 3", true},
		{"output equality", "jobs.scan.outputs.report == 'ready'", true},
		{"exit code numeric", "jobs.gate.exit_code == 99", true},
		{"status string", "jobs.gate.status == 'FAILURE'", true},
		{"and", "inputs.environment == 'prod' && jobs.scan.outputs.report == 'ready'", true},
		{"and short", "inputs.environment == 'dev' && jobs.scan.outputs.report == 'ready'", false},
		{"or", "inputs.environment == 'dev' || jobs.gate.exit_code == 99", true},
		{"parentheses", "(inputs.environment == 'dev' || inputs.environment == 'prod') && true", true},
		{"double quotes", `inputs.environment == "prod"`, true},
		{"bare reference truthy via string true", "jobs.scan.outputs.report", false},
		{"numeric output compare", "jobs.scan.outputs.total != 13", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvalCondition(tc.src, s)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("EvalCondition(%q) = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestEvalCondition_AbsentNeverMatches(t *testing.T) {
	s := testScope()

	// Отсутствующее значение не равно ничему и "не не равно" ничему:
	// оба сравнения ложны.
	cases := []string{
		"inputs.missing == 'x'",
		"inputs.missing != 'x'",
		"jobs.scan.outputs.missing == ''",
		"jobs.scan.outputs.missing != ''",
		"jobs.ghost.outputs.report == 'ready'",
		"jobs.ghost.outputs.report != 'ready'",
		"jobs.ghost.exit_code == 0",
	}

	for _, src := range cases {
		got, err := EvalCondition(src, s)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", src, err)
		}
		if got {
			t.Errorf("EvalCondition(%q) = true, want false", src)
		}
	}

	// Absent ложен и как операнд логических связок
	got, err := EvalCondition("inputs.missing || jobs.gate.exit_code == 99", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("absent operand should not poison ||")
	}
}

func TestParseCondition_SyntaxErrors(t *testing.T) {
	cases := []string{
		"inputs.a ==",
		"== 'x'",
		"(inputs.a == 'x'",
		"inputs.a = 'x'",
		"inputs.a == 'unterminated",
		"unknown.root == 'x'",
		"inputs.a && && inputs.b",
		"inputs.a == 'x' garbage",
	}

	for _, src := range cases {
		_, err := ParseCondition(src)
		if !errors.Is(err, ErrConditionSyntax) {
			t.Errorf("ParseCondition(%q): expected ErrConditionSyntax, got %v", src, err)
		}
	}
}

func TestCondition_EvalAfterParse(t *testing.T) {
	cond, err := ParseCondition("jobs.scan.outputs.report == 'ready'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cond.Source() != "jobs.scan.outputs.report == 'ready'" {
		t.Errorf("unexpected source: %q", cond.Source())
	}

	// Одно скомпилированное условие можно вычислять против разных scope
	if !cond.Eval(testScope()) {
		t.Error("expected true against populated scope")
	}
	if cond.Eval(NewScope(nil)) {
		t.Error("expected false against empty scope")
	}
}
