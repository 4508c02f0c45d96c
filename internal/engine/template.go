package engine

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Context — контекст для рендеринга шаблонов в значениях env.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Inputs.param_name }}
//   - {{ .Jobs.job_name.Outputs.key }}
//   - {{ .Matrix.param }}
type Context struct {
	// Inputs — входные параметры run.
	Inputs map[string]string

	// Jobs — результаты завершённых jobs.
	Jobs map[string]*JobContext

	// Matrix — привязки matrix-экземпляра (пусто для обычного job).
	Matrix map[string]string
}

// JobContext — результат выполнения job для использования в шаблонах.
type JobContext struct {
	// Outputs — выходные данные job.
	Outputs map[string]string

	// Status — терминальный статус: "SUCCESS", "FAILURE", "SKIPPED".
	Status string
}

// NewContext создаёт новый контекст с входными параметрами.
func NewContext(inputs map[string]string) *Context {
	if inputs == nil {
		inputs = make(map[string]string)
	}
	return &Context{
		Inputs: inputs,
		Jobs:   make(map[string]*JobContext),
		Matrix: make(map[string]string),
	}
}

// AddJobResult добавляет результат job в контекст.
func (c *Context) AddJobResult(name string, outputs map[string]string, status string) {
	if outputs == nil {
		outputs = make(map[string]string)
	}
	c.Jobs[name] = &JobContext{
		Outputs: outputs,
		Status:  status,
	}
}

// WithMatrix возвращает копию контекста с привязками matrix-экземпляра.
// Контекст копируется, чтобы экземпляры не разделяли изменяемое состояние.
func (c *Context) WithMatrix(params map[string]string) *Context {
	clone := &Context{
		Inputs: c.Inputs,
		Jobs:   c.Jobs,
		Matrix: make(map[string]string, len(params)),
	}
	for k, v := range params {
		clone.Matrix[k] = v
	}
	return clone
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// default — возвращает значение по умолчанию, если аргумент пустой
	"default": func(def, val string) string {
		if val == "" {
			return def
		}
		return val
	},

	// contains — проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split — разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Inputs.image_list }}
//	{{ .Jobs.scan.Outputs.report_path }}
//	{{ .Matrix.environment }}
func Render(tmpl string, ctx *Context) (string, error) {
	// Строки без шаблонных выражений возвращаем как есть.
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderEnv рендерит все значения окружения.
func RenderEnv(env map[string]string, ctx *Context) (map[string]string, error) {
	result := make(map[string]string, len(env))
	for key, val := range env {
		rendered, err := Render(val, ctx)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", key, err)
		}
		result[key] = rendered
	}
	return result, nil
}
