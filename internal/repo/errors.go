package repo

import "errors"

var (
	// ErrNotFound — прогон не найден.
	ErrNotFound = errors.New("run not found")

	// ErrRunNotFinished — сохраняются только завершённые прогоны.
	ErrRunNotFinished = errors.New("run is not finished")

	// ErrEmptyDSN — не задан адрес базы данных.
	ErrEmptyDSN = errors.New("empty database url")
)
