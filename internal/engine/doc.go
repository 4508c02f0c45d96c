// Package engine содержит ядро планирования пайплайна.
//
// Включает:
//   - parser.go    — парсинг Pipeline из YAML и валидация
//   - dag.go       — построение DAG зависимостей и план волн
//   - condition.go — выражения условий запуска (гейты)
//   - template.go  — рендеринг Go templates ({{ .Inputs.x }})
//
// Engine отвечает за понимание структуры пайплайна и определение
// порядка выполнения jobs на основе их зависимостей. Все ошибки
// планирования фатальны и возникают до запуска первого task.
package engine
