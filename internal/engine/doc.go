// Package engine загружает сценарии из feature файлов.
//
// Включает:
//   - feature.go  — разбор Gherkin (github.com/cucumber/gherkin/go) в Feature/Scenario/Step
//   - template.go — рендеринг текста шагов через Go templates ({{ .Fixtures.x }})
//   - tags.go     — фильтр сценариев по тегам (@smoke, ~@wip)
//
// Background, Scenario Outline и Rule разворачиваются в плоский список
// сценариев (pickles), у каждого шага сохраняется строка в исходном файле.
package engine
