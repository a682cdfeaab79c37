// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (ключ уже занят).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrInvalidPaging — некорректные параметры страницы.
	ErrInvalidPaging = errors.New("некорректные параметры страницы: номер страницы >= 0, размер > 0")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)
