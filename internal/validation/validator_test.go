package validation

import (
	"context"
	"testing"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

func TestValidateProperties(t *testing.T) {
	ct := &model.ContentType{
		Alias:           "article",
		VariesByCulture: true,
		Properties: []model.PropertyType{
			{Alias: "title", VariesByCulture: true, Mandatory: true},
			{Alias: "slug", Pattern: `^[a-z0-9-]+$`},
			{Alias: "summary"},
		},
	}
	m := &model.ContentUpdateModel{
		Properties: []model.PropertyValue{
			{Alias: "title", Culture: "en-US", Value: "Hello"},
			{Alias: "title", Culture: "da-DK", Value: "  "},
			{Alias: "slug", Value: "Not A Slug"},
		},
	}

	violations, err := New().ValidateProperties(context.Background(), m, ct, []string{"en-US", "da-DK"})
	if err != nil {
		t.Fatalf("ValidateProperties() вернул ошибку: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("нарушений = %d, ожидалось 2: %+v", len(violations), violations)
	}
	if violations[0].Alias != "title" || violations[0].Culture != "da-DK" || violations[0].Rule != RuleMandatory {
		t.Errorf("первое нарушение = %+v", violations[0])
	}
	if violations[1].Alias != "slug" || violations[1].Rule != RulePattern {
		t.Errorf("второе нарушение = %+v", violations[1])
	}
}

func TestValidateProperties_Valid(t *testing.T) {
	ct := &model.ContentType{
		Properties: []model.PropertyType{{Alias: "slug", Mandatory: true, Pattern: `^[a-z]+$`}},
	}
	m := &model.ContentUpdateModel{Properties: []model.PropertyValue{{Alias: "slug", Value: "home"}}}

	violations, err := New().ValidateProperties(context.Background(), m, ct, nil)
	if err != nil || len(violations) != 0 {
		t.Errorf("violations = %+v, err = %v", violations, err)
	}
}

func TestValidateProperties_BadPattern(t *testing.T) {
	ct := &model.ContentType{Properties: []model.PropertyType{{Alias: "x", Pattern: "("}}}
	m := &model.ContentUpdateModel{Properties: []model.PropertyValue{{Alias: "x", Value: "v"}}}

	if _, err := New().ValidateProperties(context.Background(), m, ct, nil); err == nil {
		t.Error("ожидалась ошибка компиляции шаблона")
	}
}
