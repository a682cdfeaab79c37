package language

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.yaml")
	data := `
languages:
  - iso_code: en-US
    name: English
    default: true
    mandatory: true
  - iso_code: da-DK
    name: Dansk
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("запись файла: %v", err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() вернул ошибку: %v", err)
	}
	all, _ := r.GetAll(context.Background())
	if len(all) != 2 || all[1].IsoCode != "da-DK" {
		t.Errorf("GetAll() = %+v", all)
	}
	def, _ := r.GetDefault(context.Background())
	if def == nil || def.IsoCode != "en-US" || !def.IsMandatory {
		t.Errorf("GetDefault() = %+v", def)
	}
	if _, ok := r.Get("da-DK"); !ok {
		t.Error("Get(da-DK) должен найти язык")
	}
}

func TestLoadFile_Default(t *testing.T) {
	r, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\") вернул ошибку: %v", err)
	}
	def, _ := r.GetDefault(context.Background())
	if def == nil || def.IsoCode != "en-US" {
		t.Errorf("GetDefault() = %+v", def)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		langs []model.Language
	}{
		{"пусто", nil},
		{"без кода", []model.Language{{Name: "x"}}},
		{"звёздочка", []model.Language{{IsoCode: "*"}}},
		{"дубликат", []model.Language{{IsoCode: "en-US"}, {IsoCode: "en-US"}}},
		{"два по умолчанию", []model.Language{{IsoCode: "en-US", IsDefault: true}, {IsoCode: "da-DK", IsDefault: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.langs); err == nil {
				t.Error("ожидалась ошибка")
			}
		})
	}
}

func TestGetAll_ReturnsCopy(t *testing.T) {
	r, _ := New([]model.Language{{IsoCode: "en-US", IsDefault: true}})
	all, _ := r.GetAll(context.Background())
	all[0].IsoCode = "xx"
	again, _ := r.GetAll(context.Background())
	if again[0].IsoCode != "en-US" {
		t.Error("GetAll должен возвращать копию")
	}
}
