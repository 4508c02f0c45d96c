// Package executor выполняет отдельные tasks.
//
// Task — это внешняя работа: ядро передаёт executor'у команду
// с окружением и получает обратно код выхода и объявленные outputs.
// Конкретный механизм вызова подключается через Registry;
// по умолчанию зарегистрирован command (shell).
package executor
