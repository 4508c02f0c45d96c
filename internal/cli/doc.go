// Package cli реализует инструмент командной строки Conveyor.
//
// # Обзор
//
// CLI выполняет пайплайны локально, без server: парсит YAML,
// строит план и запускает scheduler в том же процессе.
// Ненулевой код выхода, если run завершился не SUCCEEDED.
//
// # Команды
//
//   - run:   выполнить пайплайн из файла
//   - plan:  показать волны и зависимости без выполнения
//   - watch: выполнять пайплайн по cron-расписанию или интервалу
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: conveyor run p.yaml --json | jq .
package cli
