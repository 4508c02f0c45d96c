package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// maxLogBytes — сколько байт объединённого вывода сохраняется в Result.
const maxLogBytes = 16 * 1024

// outputFileEnv — переменная окружения с путём файла outputs.
//
// Task объявляет outputs, дописывая строки KEY=value в этот файл;
// после завершения команды файл разбирается в Result.Outputs.
const outputFileEnv = "CONVEYOR_OUTPUT"

// CommandExecutor выполняет task как shell-команду.
//
// Команда запускается через "sh -c" с объединённым окружением,
// рабочей директорией из определения task и файлом outputs,
// путь к которому передаётся через CONVEYOR_OUTPUT.
type CommandExecutor struct {
	// Shell — интерпретатор команд. По умолчанию "sh".
	Shell string
}

// NewCommandExecutor создаёт CommandExecutor с настройками по умолчанию.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{Shell: "sh"}
}

// Execute запускает команду task и собирает код выхода с outputs.
func (e *CommandExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	outputFile, err := os.CreateTemp("", "conveyor-output-*")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	outputPath := outputFile.Name()
	outputFile.Close()
	defer os.Remove(outputPath)

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", req.Task.Command)
	cmd.Dir = req.Task.WorkingDir
	cmd.Env = buildEnv(req.Env, outputPath)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()

	result := &Result{
		Outputs: make(map[string]string),
		Log:     tail(combined.Bytes()),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %s", ErrTaskTimeout, req.Task.Name)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, fmt.Errorf("%w: %s", ErrTaskCancelled, req.Task.Name)
		case errors.As(runErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			// Команду не удалось запустить — инфраструктурная ошибка.
			return nil, fmt.Errorf("run command: %w", runErr)
		}
	}

	outputs, err := parseOutputFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("parse outputs: %w", err)
	}
	result.Outputs = outputs

	return result, nil
}

// buildEnv собирает окружение процесса: родительское окружение,
// переменные task и путь к файлу outputs.
func buildEnv(env map[string]string, outputPath string) []string {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	merged = append(merged, outputFileEnv+"="+outputPath)
	return merged
}

// parseOutputFile разбирает файл outputs: по одной паре KEY=value
// на строку. Пустые строки и строки без '=' игнорируются.
func parseOutputFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	outputs := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			continue
		}
		outputs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return outputs, scanner.Err()
}

// tail возвращает последние maxLogBytes байт вывода.
func tail(b []byte) string {
	if len(b) <= maxLogBytes {
		return string(b)
	}
	return string(b[len(b)-maxLogBytes:])
}
