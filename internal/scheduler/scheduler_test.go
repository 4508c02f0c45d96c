package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/executor"
)

// fakeResult — сценарий выполнения для fakeExecutor.
type fakeResult struct {
	exitCode int
	outputs  map[string]string
}

// fakeExecutor подменяет command executor в тестах.
// Результат выбирается по env FAKE_RESULT, иначе по команде.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []string
	results map[string]fakeResult

	delay  time.Duration
	delays map[string]time.Duration

	running    int
	maxRunning int
}

func (f *fakeExecutor) Execute(ctx context.Context, req *executor.Request) (*executor.Result, error) {
	key := req.Env["FAKE_RESULT"]
	if key == "" {
		key = req.Task.Command
	}

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	delay := f.delay
	if d, ok := f.delays[key]; ok {
		delay = d
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, executor.ErrTaskCancelled
		}
	} else if ctx.Err() != nil {
		return nil, executor.ErrTaskCancelled
	}

	res, ok := f.results[key]
	if !ok {
		return &executor.Result{ExitCode: 0}, nil
	}
	return &executor.Result{ExitCode: res.exitCode, Outputs: res.outputs}, nil
}

func (f *fakeExecutor) called(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == key {
			return true
		}
	}
	return false
}

func newTestScheduler(fake *fakeExecutor, workers int) *Scheduler {
	reg := executor.NewRegistry()
	reg.Register("command", fake)

	return New(Config{
		Registry: reg,
		Workers:  workers,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func task(command string) domain.TaskDef {
	return domain.TaskDef{Name: command, Command: command}
}

func mustGet(t *testing.T, results *ResultSet, name string) *domain.RunResult {
	t.Helper()
	res, ok := results.Get(name)
	if !ok {
		t.Fatalf("no result for %s", name)
	}
	return res
}

func TestRun_ChainWithConditions(t *testing.T) {
	fake := &fakeExecutor{results: map[string]fakeResult{
		"scan": {outputs: map[string]string{"report": "ready"}},
	}}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "chain",
		Jobs: []domain.JobDef{
			{Name: "scan", Tasks: []domain.TaskDef{task("scan")}},
			{
				Name:      "gate",
				DependsOn: []string{"scan"},
				Condition: "jobs.scan.outputs.report == 'ready'",
				Tasks:     []domain.TaskDef{task("gate")},
			},
			{
				Name:      "rollback",
				DependsOn: []string{"scan"},
				Condition: "jobs.scan.outputs.report == 'broken'",
				Tasks:     []domain.TaskDef{task("rollback")},
			},
		},
	}

	results, err := sched.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mustGet(t, results, "scan"); got.Status != domain.JobStatusSuccess {
		t.Errorf("scan status = %s", got.Status)
	}
	if got := mustGet(t, results, "gate"); got.Status != domain.JobStatusSuccess {
		t.Errorf("gate status = %s", got.Status)
	}

	// Ложное условие — SKIPPED с пустыми outputs и нулевым кодом
	rollback := mustGet(t, results, "rollback")
	if rollback.Status != domain.JobStatusSkipped {
		t.Errorf("rollback status = %s, want SKIPPED", rollback.Status)
	}
	if rollback.ExitCode != 0 || len(rollback.Outputs) != 0 {
		t.Errorf("skipped job should have exit 0 and no outputs: %+v", rollback)
	}
	if fake.called("rollback") {
		t.Error("rollback tasks should not execute")
	}
}

func TestRun_SkipPropagation(t *testing.T) {
	fake := &fakeExecutor{}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "skip",
		Jobs: []domain.JobDef{
			{Name: "A", Condition: "false", Tasks: []domain.TaskDef{task("a")}},
			{Name: "B", DependsOn: []string{"A"}, Tasks: []domain.TaskDef{task("b")}},
			{Name: "final", DependsOn: []string{"B"}, AlwaysRun: true, Tasks: []domain.TaskDef{task("final")}},
		},
	}

	results, err := sched.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Пропуск распространяется вниз, но это не провал
	if got := mustGet(t, results, "A"); got.Status != domain.JobStatusSkipped {
		t.Errorf("A status = %s", got.Status)
	}
	if got := mustGet(t, results, "B"); got.Status != domain.JobStatusSkipped {
		t.Errorf("B status = %s", got.Status)
	}

	// always_run выполняется независимо от статусов зависимостей
	if got := mustGet(t, results, "final"); got.Status != domain.JobStatusSuccess {
		t.Errorf("final status = %s", got.Status)
	}
	if !fake.called("final") {
		t.Error("final should execute")
	}
}

func TestRun_MatrixFanOut(t *testing.T) {
	fake := &fakeExecutor{results: map[string]fakeResult{
		"a": {outputs: map[string]string{"built_a": "1"}},
		"b": {exitCode: 2},
	}}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "matrix",
		Jobs: []domain.JobDef{
			{
				Name:   "build",
				Matrix: []map[string]string{{"target": "a"}, {"target": "b"}},
				Env:    map[string]string{"FAKE_RESULT": "{{ .Matrix.target }}"},
				Tasks:  []domain.TaskDef{task("build")},
			},
			{Name: "deploy", DependsOn: []string{"build"}, Tasks: []domain.TaskDef{task("deploy")}},
			{Name: "report", DependsOn: []string{"build"}, AlwaysRun: true, Tasks: []domain.TaskDef{task("report")}},
		},
	}

	results, err := sched.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Экземпляры независимы: падение одного не трогает соседа
	inst0 := mustGet(t, results, InstanceName("build", 0))
	if inst0.Status != domain.JobStatusSuccess {
		t.Errorf("build[0] status = %s", inst0.Status)
	}
	if inst0.Matrix["target"] != "a" {
		t.Errorf("build[0] matrix = %v", inst0.Matrix)
	}

	inst1 := mustGet(t, results, InstanceName("build", 1))
	if inst1.Status != domain.JobStatusFailure || inst1.ExitCode != 2 {
		t.Errorf("build[1] = %s exit %d", inst1.Status, inst1.ExitCode)
	}

	// Агрегат: FAILURE, первый ненулевой код, объединённые outputs
	agg := mustGet(t, results, "build")
	if agg.Status != domain.JobStatusFailure {
		t.Errorf("aggregate status = %s", agg.Status)
	}
	if agg.ExitCode != 2 {
		t.Errorf("aggregate exit = %d", agg.ExitCode)
	}
	if agg.Outputs["built_a"] != "1" {
		t.Errorf("aggregate outputs = %v", agg.Outputs)
	}

	// Провал агрегата пропускает обычный downstream, но не always_run
	if got := mustGet(t, results, "deploy"); got.Status != domain.JobStatusSkipped {
		t.Errorf("deploy status = %s", got.Status)
	}
	if got := mustGet(t, results, "report"); got.Status != domain.JobStatusSuccess {
		t.Errorf("report status = %s", got.Status)
	}
}

func TestRun_ContinueOnError(t *testing.T) {
	fake := &fakeExecutor{results: map[string]fakeResult{
		"warn": {exitCode: 3},
		"fail": {exitCode: 4},
	}}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "tasks",
		Jobs: []domain.JobDef{
			{
				Name: "job",
				Tasks: []domain.TaskDef{
					{Name: "warn", Command: "warn", ContinueOnError: true},
					task("ok"),
					task("fail"),
					task("never"),
				},
			},
		},
	}

	results, err := sched.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := mustGet(t, results, "job")
	if res.Status != domain.JobStatusFailure {
		t.Errorf("status = %s", res.Status)
	}

	// Первый ненулевой код становится кодом job
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}

	if len(res.Tasks) != 4 {
		t.Fatalf("expected 4 task results, got %d", len(res.Tasks))
	}
	if !res.Tasks[0].Executed || !res.Tasks[1].Executed || !res.Tasks[2].Executed {
		t.Error("first three tasks should be executed")
	}
	if res.Tasks[3].Executed {
		t.Error("task after failure should not execute")
	}
	if fake.called("never") {
		t.Error("command after failure should not run")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	fake := &fakeExecutor{}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "cancel",
		Jobs: []domain.JobDef{
			{Name: "A", Tasks: []domain.TaskDef{task("a")}},
			{Name: "B", DependsOn: []string{"A"}, Tasks: []domain.TaskDef{task("b")}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := sched.Run(ctx, p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"A", "B"} {
		if got := mustGet(t, results, name); got.Status != domain.JobStatusCancelled {
			t.Errorf("%s status = %s, want CANCELLED", name, got.Status)
		}
	}
	if len(fake.calls) != 0 {
		t.Errorf("no tasks should run, got %v", fake.calls)
	}
}

func TestRun_CancelMidWave(t *testing.T) {
	fake := &fakeExecutor{delays: map[string]time.Duration{"b": 5 * time.Second}}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "cancel-midrun",
		Jobs: []domain.JobDef{
			{Name: "A", Tasks: []domain.TaskDef{task("a")}},
			{Name: "B", DependsOn: []string{"A"}, Tasks: []domain.TaskDef{task("b")}},
			{Name: "C", DependsOn: []string{"B"}, Tasks: []domain.TaskDef{task("c")}},
		},
	}

	// Отмена, когда B уже в полёте: A завершён, C ещё не стартовал
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for !fake.called("b") {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results, err := sched.Run(ctx, p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// In-flight task остановился кооперативно, а не досидел задержку
	if elapsed := time.Since(start); elapsed >= 5*time.Second {
		t.Errorf("run took %s, cancellation was not cooperative", elapsed)
	}

	// Завершённый результат первой волны сохранён
	if got := mustGet(t, results, "A"); got.Status != domain.JobStatusSuccess {
		t.Errorf("A status = %s, want SUCCESS", got.Status)
	}

	if got := mustGet(t, results, "B"); got.Status != domain.JobStatusCancelled {
		t.Errorf("B status = %s, want CANCELLED", got.Status)
	}
	if got := mustGet(t, results, "C"); got.Status != domain.JobStatusCancelled {
		t.Errorf("C status = %s, want CANCELLED", got.Status)
	}
	if fake.called("c") {
		t.Error("C should not run after cancellation")
	}
}

func TestRun_WorkerLimit(t *testing.T) {
	fake := &fakeExecutor{delay: 30 * time.Millisecond}
	sched := newTestScheduler(fake, 2)

	jobs := make([]domain.JobDef, 5)
	for i, name := range []string{"j1", "j2", "j3", "j4", "j5"} {
		jobs[i] = domain.JobDef{Name: name, Tasks: []domain.TaskDef{task(name)}}
	}

	results, err := sched.Run(context.Background(), &domain.Pipeline{Name: "limit", Jobs: jobs}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if results.Len() != 5 {
		t.Errorf("expected 5 results, got %d", results.Len())
	}

	fake.mu.Lock()
	maxRunning := fake.maxRunning
	fake.mu.Unlock()
	if maxRunning > 2 {
		t.Errorf("worker limit exceeded: %d concurrent jobs", maxRunning)
	}
}

func TestRun_PlanErrorIsFatal(t *testing.T) {
	sched := newTestScheduler(&fakeExecutor{}, 0)

	p := &domain.Pipeline{
		Name: "cycle",
		Jobs: []domain.JobDef{
			{Name: "A", DependsOn: []string{"B"}, Tasks: []domain.TaskDef{task("a")}},
			{Name: "B", DependsOn: []string{"A"}, Tasks: []domain.TaskDef{task("b")}},
		},
	}

	results, err := sched.Run(context.Background(), p, nil)
	if err == nil {
		t.Fatal("expected plan error")
	}
	if results != nil {
		t.Error("no results on plan error")
	}
}

func TestRun_EnvTemplatesSeeUpstreamOutputs(t *testing.T) {
	fake := &fakeExecutor{results: map[string]fakeResult{
		"produce": {outputs: map[string]string{"version": "1.2.3"}},
	}}
	sched := newTestScheduler(fake, 0)

	p := &domain.Pipeline{
		Name: "env",
		Jobs: []domain.JobDef{
			{Name: "produce", Tasks: []domain.TaskDef{task("produce")}},
			{
				Name:      "consume",
				DependsOn: []string{"produce"},
				Env:       map[string]string{"FAKE_RESULT": "{{ .Jobs.produce.Outputs.version }}"},
				Tasks:     []domain.TaskDef{task("consume")},
			},
		},
	}

	results, err := sched.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mustGet(t, results, "consume"); got.Status != domain.JobStatusSuccess {
		t.Errorf("consume status = %s", got.Status)
	}

	// Шаблон в env отрендерился значением output из upstream
	if !fake.called("1.2.3") {
		t.Errorf("expected rendered env value, calls = %v", fake.calls)
	}
}

func TestRun_Idempotence(t *testing.T) {
	p := &domain.Pipeline{
		Name: "repeat",
		Jobs: []domain.JobDef{
			{Name: "A", Tasks: []domain.TaskDef{task("a")}},
			{Name: "B", DependsOn: []string{"A"}, Tasks: []domain.TaskDef{task("b")}},
		},
	}

	// Каждый запуск получает свежий scheduler и свежие результаты
	for i := 0; i < 3; i++ {
		fake := &fakeExecutor{results: map[string]fakeResult{
			"a": {outputs: map[string]string{"k": "v"}},
		}}
		sched := newTestScheduler(fake, 0)

		results, err := sched.Run(context.Background(), p, nil)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		if results.Len() != 2 {
			t.Fatalf("run %d: expected 2 results, got %d", i, results.Len())
		}
		for _, res := range results.All() {
			if res.Status != domain.JobStatusSuccess {
				t.Errorf("run %d: %s status = %s", i, res.JobName, res.Status)
			}
		}
	}
}

func TestResultSet_Instances(t *testing.T) {
	rs := NewResultSet()
	rs.Add(&domain.RunResult{JobName: InstanceName("build", 0)})
	rs.Add(&domain.RunResult{JobName: InstanceName("build", 1)})
	rs.Add(&domain.RunResult{JobName: "build"})
	rs.Add(&domain.RunResult{JobName: "builder"})

	if InstanceName("build", 1) != "build[1]" {
		t.Errorf("InstanceName = %q", InstanceName("build", 1))
	}

	instances := rs.Instances("build")
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}
}
