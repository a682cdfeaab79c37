package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/domain/query"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

var _ repository.EntityRepository = (*Store)(nil)

// entity строит снимок узла. childTypes == nil — считаются дети любых типов.
func (s *Store) entity(n *model.Node, childTypes map[model.ObjectType]bool) *model.EntitySlim {
	e := &model.EntitySlim{Node: *n, UpdatedAt: n.CreatedAt}
	if n.CreatorID != nil {
		id := *n.CreatorID
		e.CreatorID = &id
	}
	for _, childID := range s.children[n.ID] {
		child := s.nodes[childID]
		if childTypes == nil || childTypes[child.ObjectType] {
			e.ChildCount++
		}
	}

	d, ok := s.docs[n.ID]
	if !ok || !n.ObjectType.IsContentBased() {
		return e
	}
	ct := s.contentTypes[d.contentTypeID]
	e.UpdatedAt = d.version.UpdatedAt
	e.Content = &model.ContentInfo{
		VersionID:        d.version.ID,
		ContentTypeKey:   ct.Key,
		ContentTypeAlias: ct.Alias,
		ContentTypeIcon:  ct.Icon,
		VariesByCulture:  ct.VariesByCulture,
	}
	if n.ObjectType.IsDocumentBased() {
		e.Document = &model.DocumentInfo{Published: d.published, Edited: d.edited}
	}
	if n.ObjectType == model.ObjectTypeMedia {
		e.Media = &model.MediaInfo{MediaPath: d.mediaPath}
	}
	return e
}

func typeSet(types []model.ObjectType) map[model.ObjectType]bool {
	set := make(map[model.ObjectType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func sortEntities(items []*model.EntitySlim, o model.Ordering) {
	if o.IsEmpty() {
		o = model.DefaultOrdering().WithTiebreak()
	}
	sort.SliceStable(items, func(i, j int) bool {
		return o.Compare(items[i], items[j]) < 0
	})
}

func (s *Store) GetByKey(_ context.Context, key uuid.UUID) (*model.EntitySlim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.entity(s.nodes[id], nil), nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*model.EntitySlim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.entity(n, nil), nil
}

func (s *Store) match(q repository.EntityQuery) []*model.EntitySlim {
	types := typeSet(q.ObjectTypes)
	var out []*model.EntitySlim
	for _, n := range s.nodes {
		if !types[n.ObjectType] || !query.Match(q.Where, n) || !query.Match(q.Filter, n) {
			continue
		}
		out = append(out, s.entity(n, types))
	}
	return out
}

func (s *Store) GetPage(_ context.Context, q repository.EntityQuery) ([]*model.EntitySlim, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.match(q)
	sortEntities(items, q.Ordering)
	total := int64(len(items))
	if q.PageSize <= 0 {
		return items, total, nil
	}

	start := q.PageIndex * int64(q.PageSize)
	if start >= total {
		return []*model.EntitySlim{}, total, nil
	}
	end := min(start+int64(q.PageSize), total)
	return items[start:end], total, nil
}

func (s *Store) Count(_ context.Context, q repository.EntityQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := typeSet(q.ObjectTypes)
	var count int64
	for _, n := range s.nodes {
		if types[n.ObjectType] && query.Match(q.Where, n) && query.Match(q.Filter, n) {
			count++
		}
	}
	return count, nil
}

// GetSiblingKeys ранжирует детей родителя цели вне корзины и возвращает окно вокруг цели.
func (s *Store) GetSiblingKeys(_ context.Context, q repository.SiblingQuery) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[q.TargetKey]
	if !ok {
		return nil, nil
	}
	target := s.nodes[id]
	if target.Trashed {
		return nil, nil
	}

	var ranked []*model.EntitySlim
	for _, childID := range s.children[target.ParentID] {
		n := s.nodes[childID]
		if !n.Trashed {
			ranked = append(ranked, s.entity(n, nil))
		}
	}
	sortEntities(ranked, q.Ordering)

	pivot := -1
	for i, e := range ranked {
		if e.ID == target.ID {
			pivot = i
			break
		}
	}
	if pivot < 0 {
		return nil, nil
	}
	from := max(pivot-q.Before, 0)
	to := min(pivot+q.After, len(ranked)-1)

	keys := make([]uuid.UUID, 0, to-from+1)
	for _, e := range ranked[from : to+1] {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

func (s *Store) GetByKeys(_ context.Context, objectType model.ObjectType, keys []uuid.UUID) ([]*model.EntitySlim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := typeSet([]model.ObjectType{objectType})
	out := []*model.EntitySlim{}
	for _, key := range keys {
		id, ok := s.keys[key]
		if !ok {
			continue
		}
		if n := s.nodes[id]; n.ObjectType == objectType {
			out = append(out, s.entity(n, types))
		}
	}
	return out, nil
}

func (s *Store) GetByIDs(_ context.Context, objectType model.ObjectType, ids []int64) ([]*model.EntitySlim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := typeSet([]model.ObjectType{objectType})
	out := []*model.EntitySlim{}
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok && n.ObjectType == objectType {
			out = append(out, s.entity(n, types))
		}
	}
	return out, nil
}

func (s *Store) GetPaths(_ context.Context, objectType model.ObjectType, ids []int64) ([]model.TreeEntityPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wanted map[int64]bool
	if len(ids) > 0 {
		wanted = make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}
	var out []model.TreeEntityPath
	for _, n := range s.nodes {
		if n.ObjectType == objectType && (wanted == nil || wanted[n.ID]) {
			out = append(out, model.TreeEntityPath{ID: n.ID, Path: n.Path})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetPathsByKeys(ctx context.Context, objectType model.ObjectType, keys []uuid.UUID) ([]model.TreeEntityPath, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(keys))
	for _, key := range keys {
		if id, ok := s.keys[key]; ok {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	if len(keys) > 0 && len(ids) == 0 {
		return nil, nil
	}
	return s.GetPaths(ctx, objectType, ids)
}

func (s *Store) GetObjectType(_ context.Context, id int64) (model.ObjectType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return model.ObjectTypeUnknown, repository.ErrNotFound
	}
	return n.ObjectType, nil
}

func (s *Store) GetObjectTypeByKey(_ context.Context, key uuid.UUID) (model.ObjectType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[key]
	if !ok {
		return model.ObjectTypeUnknown, repository.ErrNotFound
	}
	return s.nodes[id].ObjectType, nil
}

func (s *Store) ExistsByKey(_ context.Context, key uuid.UUID, objectType model.ObjectType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[key]
	if !ok {
		return false, nil
	}
	return objectType == model.ObjectTypeUnknown || s.nodes[id].ObjectType == objectType, nil
}

func (s *Store) ExistsByID(_ context.Context, id int64, objectType model.ObjectType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return false, nil
	}
	return objectType == model.ObjectTypeUnknown || n.ObjectType == objectType, nil
}

func (s *Store) CountExisting(_ context.Context, keys []uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, key := range keys {
		if _, ok := s.keys[key]; ok {
			count++
		}
	}
	return count, nil
}

// ReserveID записывает узел-резерв под корнем с новым идентификатором.
func (s *Store) ReserveID(_ context.Context, key uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[key]; exists {
		return 0, repository.ErrConflict
	}
	n, err := s.insertNode(NodeSpec{Key: key, ObjectType: model.ObjectTypeIDReservation, Name: "RESERVED.ID"})
	if err != nil {
		return 0, err
	}
	n.SortOrder = 0
	return n.ID, nil
}

func (s *Store) GetID(_ context.Context, key uuid.UUID, objectType model.ObjectType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[key]
	if !ok {
		return 0, repository.ErrNotFound
	}
	t := s.nodes[id].ObjectType
	if t != objectType && t != model.ObjectTypeIDReservation {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (s *Store) GetVariantInfos(_ context.Context, ids []int64) ([]model.VariantInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.VariantInfo
	for _, id := range ids {
		d, ok := s.docs[id]
		if !ok {
			continue
		}
		for iso, v := range d.cultures {
			out = append(out, model.VariantInfo{
				NodeID:    id,
				Culture:   iso,
				Name:      v.Name,
				Available: v.Available,
				Published: v.Published,
				Edited:    v.Edited,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return strings.Compare(out[i].Culture, out[j].Culture) < 0
	})
	return out, nil
}
