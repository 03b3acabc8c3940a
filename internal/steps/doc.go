// Package steps содержит каталог шагов обоих конвейеров и их реализации.
//
// Шаги регистрируются в Registry в порядке выполнения; движок получает
// упорядоченный список (или его подмножество) и вызывает тела шагов через
// единый контракт Handler. Состав шагов — конфигурация времени сборки,
// а не состояние времени выполнения.
package steps
