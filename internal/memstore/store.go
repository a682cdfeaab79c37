// Пакет memstore — потокобезопасное in-memory хранилище дерева узлов.
//
// Реализует те же контракты, что и репозитории PostgreSQL
// (repository.EntityRepository, repository.DocumentStore, связи,
// пользователи, единицы работы). Используется в режиме CE_STORAGE=memory
// и в тестах сервисов.
//
// Не персистентный: при рестарте содержимое теряется.
package memstore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/content-engine/internal/domain/model"
	"github.com/bigkaa/goartstore/content-engine/internal/repository"
)

// Store — in-memory хранилище. Использует sync.RWMutex для конкурентного
// чтения и эксклюзивной записи; наружу отдаются только копии.
type Store struct {
	mu sync.RWMutex

	nextID        int64
	nextVersionID int64
	now           func() time.Time

	nodes        map[int64]*model.Node
	keys         map[uuid.UUID]int64
	children     map[int64][]int64
	contentTypes map[int64]*model.ContentType
	docs         map[int64]*document
	schedules    map[int64]*model.ScheduleCollection
	relations    []relation
	actors       map[uuid.UUID]int64

	scopes ScopeStats

	logger *slog.Logger
}

// document — запись объекта с типом контента (документ, шаблон, медиа, участник).
type document struct {
	contentTypeID    int64
	version          model.ContentVersion
	properties       []model.Property
	published        bool
	edited           bool
	publishedVersion *model.PublishedVersion
	cultures         map[string]*model.CultureVariant
	rowVersion       int64
	mediaPath        string
}

type relation struct {
	parentID   int64
	childID    int64
	dependency bool
}

// Option — опция Store.
type Option func(*Store)

// WithClock задаёт источник времени для дат создания и изменения.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New создаёт пустое хранилище.
func New(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		nextID:        1000,
		nextVersionID: 1,
		now:           time.Now,
		nodes:         make(map[int64]*model.Node),
		keys:          make(map[uuid.UUID]int64),
		children:      make(map[int64][]int64),
		contentTypes:  make(map[int64]*model.ContentType),
		docs:          make(map[int64]*document),
		schedules:     make(map[int64]*model.ScheduleCollection),
		actors:        make(map[uuid.UUID]int64),
		logger:        logger.With(slog.String("component", "memstore")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NodeSpec — описание создаваемого узла.
type NodeSpec struct {
	// Key — ключ узла (uuid.Nil — сгенерировать)
	Key uuid.UUID
	// ParentID — родитель (0 или RootID — верхний уровень)
	ParentID int64
	// ObjectType — тип объекта
	ObjectType model.ObjectType
	// Name — имя узла
	Name string
	// SortOrder — порядок среди соседей (nil — в конец)
	SortOrder *int
	// CreatorID — создатель
	CreatorID *int64
	// ContentTypeKey — тип контента (для документов, медиа, участников)
	ContentTypeKey uuid.UUID
	// CultureNames — имена культур варьируемого документа
	CultureNames map[string]string
	// Properties — значения свойств
	Properties []model.Property
	// MediaPath — путь файла медиа
	MediaPath string
}

// AddContentType регистрирует тип контента как узел верхнего уровня.
func (s *Store) AddContentType(ct model.ContentType) (*model.ContentType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ct.Key == uuid.Nil {
		ct.Key = uuid.New()
	}
	n, err := s.insertNode(NodeSpec{Key: ct.Key, ObjectType: model.ObjectTypeOther, Name: ct.Alias})
	if err != nil {
		return nil, err
	}
	ct.ID = n.ID
	stored := ct
	s.contentTypes[n.ID] = &stored
	return &ct, nil
}

// AddNode создаёт узел. Для объектов с типом контента создаётся
// текущая версия и состояние публикации (не опубликован, изменён).
func (s *Store) AddNode(spec NodeSpec) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ct *model.ContentType
	if spec.ObjectType.IsContentBased() {
		ct = s.contentTypeByKey(spec.ContentTypeKey)
		if ct == nil {
			return nil, fmt.Errorf("тип контента %s не найден: %w", spec.ContentTypeKey, repository.ErrNotFound)
		}
	}

	n, err := s.insertNode(spec)
	if err != nil {
		return nil, err
	}

	if ct != nil {
		d := &document{
			contentTypeID: ct.ID,
			version:       s.newVersion(spec.CreatorID),
			properties:    spec.Properties,
			edited:        true,
			rowVersion:    1,
			mediaPath:     spec.MediaPath,
			cultures:      map[string]*model.CultureVariant{},
		}
		if ct.VariesByCulture {
			for iso, name := range spec.CultureNames {
				d.cultures[iso] = &model.CultureVariant{
					Culture:   iso,
					Name:      name,
					Available: name != "",
					Edited:    name != "",
				}
			}
		}
		s.docs[n.ID] = d
	}

	out := *n
	return &out, nil
}

func (s *Store) insertNode(spec NodeSpec) (*model.Node, error) {
	if spec.Key == uuid.Nil {
		spec.Key = uuid.New()
	}
	if _, exists := s.keys[spec.Key]; exists {
		return nil, fmt.Errorf("ключ %s уже занят: %w", spec.Key, repository.ErrConflict)
	}
	if spec.ParentID == 0 {
		spec.ParentID = model.RootID
	}

	parentPath := ""
	if spec.ParentID != model.RootID {
		parent, ok := s.nodes[spec.ParentID]
		if !ok {
			return nil, fmt.Errorf("родитель %d не найден: %w", spec.ParentID, repository.ErrNotFound)
		}
		parentPath = parent.Path
	}

	id := s.nextID
	s.nextID++

	sortOrder := len(s.children[spec.ParentID])
	if spec.SortOrder != nil {
		sortOrder = *spec.SortOrder
	}
	path := model.BuildPath(parentPath, id)
	n := &model.Node{
		ID:         id,
		Key:        spec.Key,
		ParentID:   spec.ParentID,
		Path:       path,
		Level:      model.LevelOf(path),
		SortOrder:  sortOrder,
		ObjectType: spec.ObjectType,
		Name:       spec.Name,
		CreatorID:  spec.CreatorID,
		CreatedAt:  s.now().UTC(),
	}
	s.nodes[id] = n
	s.keys[n.Key] = id
	s.children[n.ParentID] = append(s.children[n.ParentID], id)
	return n, nil
}

func (s *Store) newVersion(writerID *int64) model.ContentVersion {
	v := model.ContentVersion{ID: s.nextVersionID, UpdatedAt: s.now().UTC(), WriterID: writerID}
	s.nextVersionID++
	return v
}

func (s *Store) contentTypeByKey(key uuid.UUID) *model.ContentType {
	id, ok := s.keys[key]
	if !ok {
		return nil
	}
	return s.contentTypes[id]
}

// Trash перемещает узел в корзину (родитель и путь сохраняются).
func (s *Store) Trash(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return repository.ErrNotFound
	}
	n.Trashed = true
	return nil
}

// MarkEdited сохраняет правку документа: новая текущая версия,
// документ и указанные культуры помечаются изменёнными, версия строки растёт.
func (s *Store) MarkEdited(id int64, cultures ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.version = s.newVersion(d.version.WriterID)
	d.edited = true
	for _, iso := range cultures {
		if v, ok := d.cultures[iso]; ok {
			v.Edited = true
		}
	}
	d.rowVersion++
	return nil
}

// AddRelation добавляет связь parent → child.
func (s *Store) AddRelation(parentID, childID int64, dependency bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations = append(s.relations, relation{parentID: parentID, childID: childID, dependency: dependency})
}

// AddActor регистрирует пользователя.
func (s *Store) AddActor(key uuid.UUID, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[key] = id
}
