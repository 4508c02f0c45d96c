package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

const samplePipeline = `
version: "1"
name: image-scan
description: Scan images and gate the release
inputs:
  registry:
    required: true
  environment:
    default: staging
env:
  CI: "true"
failure_codes: [1, 99]
jobs:
  - name: scan
    tasks:
      - name: run-scan
        command: scan.sh
  - name: gate
    depends_on: [scan]
    condition: jobs.scan.outputs.report == 'ready'
    tasks:
      - name: check
        command: gate.sh
        timeout_sec: 30
  - name: report
    depends_on: [gate]
    always_run: true
    matrix:
      - channel: slack
      - channel: email
    tasks:
      - name: notify
        command: notify.sh
        continue_on_error: true
`

func TestParsePipeline(t *testing.T) {
	p, err := ParsePipeline([]byte(samplePipeline))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Name != "image-scan" {
		t.Errorf("expected name image-scan, got %q", p.Name)
	}
	if len(p.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(p.Jobs))
	}

	// Входные параметры
	if !p.Inputs["registry"].Required {
		t.Error("registry should be required")
	}
	if p.Inputs["environment"].Default != "staging" {
		t.Errorf("unexpected default: %q", p.Inputs["environment"].Default)
	}

	// Failure codes пайплайна
	codes := p.EffectiveFailureCodes()
	if !codes[1] || !codes[99] {
		t.Errorf("expected failure codes {1, 99}, got %v", codes)
	}

	gate := p.JobByName("gate")
	if gate == nil {
		t.Fatal("job gate not found")
	}
	if gate.Condition != "jobs.scan.outputs.report == 'ready'" {
		t.Errorf("unexpected condition: %q", gate.Condition)
	}
	if gate.Tasks[0].TimeoutSec != 30 {
		t.Errorf("expected timeout 30, got %d", gate.Tasks[0].TimeoutSec)
	}

	report := p.JobByName("report")
	if !report.AlwaysRun {
		t.Error("report should be always_run")
	}
	if !report.HasMatrix() || len(report.Matrix) != 2 {
		t.Errorf("expected matrix with 2 entries, got %v", report.Matrix)
	}
	if !report.Tasks[0].ContinueOnError {
		t.Error("notify should be continue_on_error")
	}
}

func TestParsePipeline_DefaultFailureCodes(t *testing.T) {
	p := &domain.Pipeline{}
	codes := p.EffectiveFailureCodes()
	if len(codes) != 1 || !codes[1] {
		t.Errorf("expected default failure codes {1}, got %v", codes)
	}
}

func TestValidate_Errors(t *testing.T) {
	task := []domain.TaskDef{{Name: "t", Command: "true"}}

	cases := []struct {
		name string
		p    *domain.Pipeline
		want error
	}{
		{
			"no jobs",
			&domain.Pipeline{},
			ErrEmptyJobs,
		},
		{
			"empty job name",
			&domain.Pipeline{Jobs: []domain.JobDef{{Tasks: task}}},
			ErrEmptyJobName,
		},
		{
			"duplicate job name",
			&domain.Pipeline{Jobs: []domain.JobDef{
				{Name: "A", Tasks: task},
				{Name: "A", Tasks: task},
			}},
			ErrDuplicateJobName,
		},
		{
			"self dependency",
			&domain.Pipeline{Jobs: []domain.JobDef{
				{Name: "A", DependsOn: []string{"A"}, Tasks: task},
			}},
			ErrSelfDependency,
		},
		{
			"no tasks",
			&domain.Pipeline{Jobs: []domain.JobDef{{Name: "A"}}},
			ErrEmptyTasks,
		},
		{
			"empty command",
			&domain.Pipeline{Jobs: []domain.JobDef{
				{Name: "A", Tasks: []domain.TaskDef{{Name: "t"}}},
			}},
			ErrEmptyCommand,
		},
		{
			"unknown dependency",
			&domain.Pipeline{Jobs: []domain.JobDef{
				{Name: "A", DependsOn: []string{"ghost"}, Tasks: task},
			}},
			ErrUnknownDependency,
		},
		{
			"empty matrix entry",
			&domain.Pipeline{Jobs: []domain.JobDef{
				{Name: "A", Matrix: []map[string]string{{}}, Tasks: task},
			}},
			ErrEmptyMatrixEntry,
		},
		{
			"bad condition",
			&domain.Pipeline{Jobs: []domain.JobDef{
				{Name: "A", Condition: "inputs.a ==", Tasks: task},
			}},
			ErrConditionSyntax,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.p)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParsePipeline_InvalidYAML(t *testing.T) {
	_, err := ParsePipeline([]byte("jobs: [what"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestResolveInputs(t *testing.T) {
	p := &domain.Pipeline{
		Inputs: map[string]domain.InputDef{
			"registry":    {Required: true},
			"environment": {Default: "staging"},
			"optional":    {},
		},
	}

	t.Run("defaults and passthrough", func(t *testing.T) {
		resolved, err := ResolveInputs(p, map[string]string{
			"registry": "quay.io",
			"extra":    "opaque",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if resolved["registry"] != "quay.io" {
			t.Errorf("registry = %q", resolved["registry"])
		}
		if resolved["environment"] != "staging" {
			t.Errorf("environment default not applied: %q", resolved["environment"])
		}
		if resolved["extra"] != "opaque" {
			t.Errorf("unknown provided input should pass through: %q", resolved["extra"])
		}
		if _, ok := resolved["optional"]; ok {
			t.Error("optional input without value should be omitted")
		}
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := ResolveInputs(p, nil)
		if !errors.Is(err, ErrMissingInput) {
			t.Errorf("expected ErrMissingInput, got %v", err)
		}
	})

	t.Run("provided overrides default", func(t *testing.T) {
		resolved, err := ResolveInputs(p, map[string]string{
			"registry":    "r",
			"environment": "prod",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resolved["environment"] != "prod" {
			t.Errorf("environment = %q", resolved["environment"])
		}
	})
}
