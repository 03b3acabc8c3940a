// Package engine — движок конвейеров: управляющие операции (Start,
// Pause, Resume) и однописательные циклы выполнения шагов.
//
// Структура:
//   - engine.go    — управляющая поверхность и жизненный цикл воркеров
//   - gate.go      — кооперативные ворота паузы
//   - capture.go   — цикл конвейера захвата (пакетные шаги)
//   - treatment.go — цикл конвейера тратамента (очередь планов, под-этапы)
//
// Инварианты:
//   - На конвейер одновременно живёт не более одного воркера.
//   - Пауза кооперативна: проверяется на границах юнитов, текущий юнит
//     дорабатывает до конца.
//   - Воркер не завершается при паузе и при исчерпании retry: он блокируется
//     на воротах и после Resume продолжает ровно со следующего (или
//     отказавшего) юнита.
package engine
