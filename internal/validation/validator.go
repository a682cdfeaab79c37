// Пакет validation — проверка значений свойств документа перед публикацией.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

// Правила проверки.
const (
	RuleMandatory = "mandatory"
	RulePattern   = "pattern"
)

// Validator проверяет обязательность и формат значений свойств.
// Скомпилированные регулярные выражения кэшируются.
type Validator struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New создаёт Validator.
func New() *Validator {
	return &Validator{patterns: make(map[string]*regexp.Regexp)}
}

// ValidateProperties проверяет значения модели по описанию типа.
// Для варьируемых свойств проверяются переданные культуры,
// для инвариантных — значение без культуры.
func (v *Validator) ValidateProperties(_ context.Context, m *model.ContentUpdateModel, ct *model.ContentType, cultures []string) ([]model.PropertyViolation, error) {
	values := make(map[string]string, len(m.Properties))
	for _, p := range m.Properties {
		values[p.Alias+"|"+p.Culture] = p.Value
	}

	var violations []model.PropertyViolation
	for _, pt := range ct.Properties {
		targets := []string{""}
		if pt.VariesByCulture && ct.VariesByCulture {
			targets = cultures
		}
		for _, culture := range targets {
			value := values[pt.Alias+"|"+culture]
			if pt.Mandatory && strings.TrimSpace(value) == "" {
				violations = append(violations, model.PropertyViolation{Alias: pt.Alias, Culture: culture, Rule: RuleMandatory})
				continue
			}
			if pt.Pattern == "" || value == "" {
				continue
			}
			re, err := v.compile(pt.Pattern)
			if err != nil {
				return nil, fmt.Errorf("свойство %s: %w", pt.Alias, err)
			}
			if !re.MatchString(value) {
				violations = append(violations, model.PropertyViolation{Alias: pt.Alias, Culture: culture, Rule: RulePattern})
			}
		}
	}
	return violations, nil
}

func (v *Validator) compile(pattern string) (*regexp.Regexp, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if re, ok := v.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("некорректное регулярное выражение %q: %w", pattern, err)
	}
	v.patterns[pattern] = re
	return re, nil
}
