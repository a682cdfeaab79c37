// variants.go — дополнение документов сведениями о культурах.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

// DefaultMaxParameterCount — предел числа идентификаторов в одном запросе культур.
const DefaultMaxParameterCount = 2000

// VariantAggregator заполняет имена, опубликованные и изменённые культуры
// варьируемых документов одним запросом на пакет.
type VariantAggregator struct {
	repo      repository.EntityRepository
	maxParams int
	logger    *slog.Logger
}

// NewVariantAggregator создаёт агрегатор. maxParams <= 0 — DefaultMaxParameterCount.
func NewVariantAggregator(repo repository.EntityRepository, maxParams int, logger *slog.Logger) *VariantAggregator {
	if maxParams <= 0 {
		maxParams = DefaultMaxParameterCount
	}
	return &VariantAggregator{
		repo:      repo,
		maxParams: maxParams,
		logger:    logger.With(slog.String("component", "variant_aggregator")),
	}
}

// Attach дополняет варьируемые документы из items сведениями о культурах.
// Остальные элементы не изменяются.
func (a *VariantAggregator) Attach(ctx context.Context, items ...*model.EntitySlim) error {
	byID := make(map[int64]*model.EntitySlim)
	var ids []int64
	for _, e := range items {
		if e == nil || e.Document == nil || !e.VariesByCulture() {
			continue
		}
		if _, dup := byID[e.ID]; dup {
			continue
		}
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	batches := 0
	for start := 0; start < len(ids); start += a.maxParams {
		end := min(start+a.maxParams, len(ids))
		infos, err := a.repo.GetVariantInfos(ctx, ids[start:end])
		if err != nil {
			return fmt.Errorf("сведения о культурах: %w", err)
		}
		for _, v := range infos {
			if e, ok := byID[v.NodeID]; ok {
				apply(e.Document, v)
			}
		}
		batches++
	}

	for _, e := range byID {
		sort.Strings(e.Document.PublishedCultures)
		sort.Strings(e.Document.EditedCultures)
	}
	a.logger.Debug("Культуры документов загружены",
		slog.Int("documents", len(ids)),
		slog.Int("batches", batches),
	)
	return nil
}

func apply(d *model.DocumentInfo, v model.VariantInfo) {
	if d.CultureNames == nil {
		d.CultureNames = make(map[string]string)
	}
	if v.Available {
		d.CultureNames[v.Culture] = v.Name
		if v.Edited {
			d.EditedCultures = append(d.EditedCultures, v.Culture)
		}
	}
	if v.Published {
		d.PublishedCultures = append(d.PublishedCultures, v.Culture)
	}
}
