package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

var (
	_ repository.DocumentStore      = (*Store)(nil)
	_ repository.RelationRepository = (*Store)(nil)
	_ repository.ActorRepository    = (*Store)(nil)
)

// content собирает документ для изменения. Вызывается под блокировкой.
func (s *Store) content(n *model.Node) (*model.Content, bool) {
	d, ok := s.docs[n.ID]
	if !ok || !n.ObjectType.IsDocumentBased() {
		return nil, false
	}
	c := &model.Content{
		Node:        *n,
		ContentType: cloneContentType(s.contentTypes[d.contentTypeID]),
		Version:     d.version,
		Published:   d.published,
		Edited:      d.edited,
		Cultures:    make(map[string]*model.CultureVariant, len(d.cultures)),
		Properties:  make([]model.Property, len(d.properties)),
		RowVersion:  d.rowVersion,
	}
	if d.publishedVersion != nil {
		pv := *d.publishedVersion
		c.PublishedVersion = &pv
	}
	for iso, v := range d.cultures {
		cv := *v
		c.Cultures[iso] = &cv
	}
	for i, p := range d.properties {
		c.Properties[i] = model.Property{Alias: p.Alias, VariesByCulture: p.VariesByCulture, Values: maps.Clone(p.Values)}
	}
	return c, true
}

func cloneContentType(ct *model.ContentType) *model.ContentType {
	out := *ct
	out.Properties = slices.Clone(ct.Properties)
	return &out
}

func (s *Store) GetContentByKey(_ context.Context, key uuid.UUID) (*model.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c, ok := s.content(s.nodes[id])
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetContentByID(_ context.Context, id int64) (*model.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c, ok := s.content(n)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetContentTypeByKey(_ context.Context, key uuid.UUID) (*model.ContentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ct := s.contentTypeByKey(key)
	if ct == nil {
		return nil, repository.ErrNotFound
	}
	return cloneContentType(ct), nil
}

// IsPathPublished — все предки существуют, не в корзине и опубликованы.
func (s *Store) IsPathPublished(_ context.Context, c *model.Content) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range c.AncestorIDs() {
		n, ok := s.nodes[id]
		if !ok || n.Trashed {
			return false, nil
		}
		d, ok := s.docs[id]
		if !ok || !d.published {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) SaveContent(_ context.Context, c *model.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if d.rowVersion != c.RowVersion {
		return repository.ErrConcurrencyViolation
	}

	d.published = c.Published
	d.edited = c.Edited
	d.publishedVersion = nil
	if c.PublishedVersion != nil {
		pv := *c.PublishedVersion
		d.publishedVersion = &pv
	}
	d.cultures = make(map[string]*model.CultureVariant, len(c.Cultures))
	for iso, v := range c.Cultures {
		cv := *v
		d.cultures[iso] = &cv
	}
	d.rowVersion++
	c.RowVersion = d.rowVersion
	return nil
}

func (s *Store) GetDescendantIDs(_ context.Context, root *model.Content) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := root.DescendantPrefix()
	var nodes []*model.Node
	for _, n := range s.nodes {
		if !n.Trashed && n.ObjectType == model.ObjectTypeDocument && strings.HasPrefix(n.Path, prefix) {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids, nil
}

func (s *Store) GetSchedule(_ context.Context, nodeID int64) (*model.ScheduleCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedules[nodeID].Clone(), nil
}

func (s *Store) SaveSchedule(_ context.Context, nodeID int64, sc *model.ScheduleCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc.Len() == 0 {
		delete(s.schedules, nodeID)
		return nil
	}
	s.schedules[nodeID] = sc.Clone()
	return nil
}

func (s *Store) GetScheduledNodeIDs(_ context.Context, dueBefore time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, sc := range s.schedules {
		if len(sc.Due(dueBefore)) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// IsReferenced — узел является дочерней стороной связи-зависимости.
func (s *Store) IsReferenced(_ context.Context, nodeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.relations {
		if r.childID == nodeID && r.dependency {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetActorID(_ context.Context, key uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.actors[key]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}
