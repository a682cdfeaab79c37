// Пакет language — реестр языков системы.
// Языки загружаются из YAML-файла при старте и не меняются во время работы.
package language

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

// DefaultLanguages — набор по умолчанию, если файл не задан.
var DefaultLanguages = []model.Language{
	{IsoCode: "en-US", Name: "English (United States)", IsDefault: true, IsMandatory: true},
}

// fileFormat — структура YAML-файла языков.
type fileFormat struct {
	Languages []model.Language `yaml:"languages"`
}

// Registry — неизменяемый реестр языков.
type Registry struct {
	languages []model.Language
	byIso     map[string]model.Language
	def       *model.Language
}

// New создаёт реестр. Требования: хотя бы один язык, уникальные
// ISO-коды, не более одного языка по умолчанию.
func New(langs []model.Language) (*Registry, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("список языков пуст")
	}
	r := &Registry{
		languages: make([]model.Language, 0, len(langs)),
		byIso:     make(map[string]model.Language, len(langs)),
	}
	for _, l := range langs {
		if l.IsoCode == "" {
			return nil, fmt.Errorf("язык без iso_code")
		}
		if l.IsoCode == model.InvariantCulture {
			return nil, fmt.Errorf("iso_code %q зарезервирован", l.IsoCode)
		}
		if _, dup := r.byIso[l.IsoCode]; dup {
			return nil, fmt.Errorf("язык %s указан дважды", l.IsoCode)
		}
		if l.IsDefault {
			if r.def != nil {
				return nil, fmt.Errorf("несколько языков по умолчанию: %s и %s", r.def.IsoCode, l.IsoCode)
			}
			def := l
			r.def = &def
		}
		r.byIso[l.IsoCode] = l
		r.languages = append(r.languages, l)
	}
	return r, nil
}

// LoadFile загружает реестр из YAML-файла.
// Пустой путь — DefaultLanguages.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return New(DefaultLanguages)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла языков %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла языков %s: %w", path, err)
	}
	return New(f.Languages)
}

// GetAll возвращает копию списка языков в порядке объявления.
func (r *Registry) GetAll(_ context.Context) ([]model.Language, error) {
	out := make([]model.Language, len(r.languages))
	copy(out, r.languages)
	return out, nil
}

// GetDefault возвращает язык по умолчанию или nil.
func (r *Registry) GetDefault(_ context.Context) (*model.Language, error) {
	if r.def == nil {
		return nil, nil
	}
	def := *r.def
	return &def, nil
}

// Get возвращает язык по ISO-коду.
func (r *Registry) Get(isoCode string) (model.Language, bool) {
	l, ok := r.byIso[isoCode]
	return l, ok
}
