package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ScheduleAction — действие плановой публикации.
type ScheduleAction int

const (
	// ScheduleActionRelease — опубликовать в указанное время
	ScheduleActionRelease ScheduleAction = iota
	// ScheduleActionExpire — снять с публикации в указанное время
	ScheduleActionExpire
)

func (a ScheduleAction) String() string {
	if a == ScheduleActionExpire {
		return "expire"
	}
	return "release"
}

// ParseScheduleAction разбирает строковое представление действия.
func ParseScheduleAction(s string) (ScheduleAction, error) {
	switch s {
	case "release":
		return ScheduleActionRelease, nil
	case "expire":
		return ScheduleActionExpire, nil
	}
	return 0, fmt.Errorf("неизвестное действие расписания %q", s)
}

// ScheduleEntry — запись расписания. Хранится в таблице content_schedule.
type ScheduleEntry struct {
	ID      uuid.UUID
	Culture string
	Date    time.Time
	Action  ScheduleAction
}

type scheduleKey struct {
	culture string
	action  ScheduleAction
}

// ScheduleCollection — расписание документа.
// На пару (культура, действие) приходится не более одной записи.
type ScheduleCollection struct {
	entries map[scheduleKey]ScheduleEntry
}

// NewScheduleCollection создаёт расписание; дубликаты пары перезаписываются.
func NewScheduleCollection(entries ...ScheduleEntry) *ScheduleCollection {
	s := &ScheduleCollection{entries: make(map[scheduleKey]ScheduleEntry, len(entries))}
	for _, e := range entries {
		if e.Culture == "" {
			e.Culture = InvariantCulture
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.Date = e.Date.UTC()
		s.entries[scheduleKey{e.Culture, e.Action}] = e
	}
	return s
}

// AddOrUpdate добавляет или заменяет запись для пары (культура, действие).
func (s *ScheduleCollection) AddOrUpdate(culture string, date time.Time, action ScheduleAction) {
	if s.entries == nil {
		s.entries = map[scheduleKey]ScheduleEntry{}
	}
	if culture == "" {
		culture = InvariantCulture
	}
	key := scheduleKey{culture, action}
	id := uuid.New()
	if existing, ok := s.entries[key]; ok {
		id = existing.ID
	}
	s.entries[key] = ScheduleEntry{ID: id, Culture: culture, Date: date.UTC(), Action: action}
}

// RemoveIfExists удаляет запись, если она есть.
func (s *ScheduleCollection) RemoveIfExists(culture string, action ScheduleAction) {
	if s == nil {
		return
	}
	if culture == "" {
		culture = InvariantCulture
	}
	delete(s.entries, scheduleKey{culture, action})
}

// Get возвращает запись для пары.
func (s *ScheduleCollection) Get(culture string, action ScheduleAction) (ScheduleEntry, bool) {
	if s == nil {
		return ScheduleEntry{}, false
	}
	if culture == "" {
		culture = InvariantCulture
	}
	e, ok := s.entries[scheduleKey{culture, action}]
	return e, ok
}

// Len — число записей.
func (s *ScheduleCollection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// FullSchedule — все записи, упорядоченные по дате, культуре и действию.
func (s *ScheduleCollection) FullSchedule() []ScheduleEntry {
	if s == nil {
		return nil
	}
	out := make([]ScheduleEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Culture != out[j].Culture {
			return out[i].Culture < out[j].Culture
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Cultures — культуры, упомянутые в расписании.
func (s *ScheduleCollection) Cultures() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range s.FullSchedule() {
		if _, ok := seen[e.Culture]; ok {
			continue
		}
		seen[e.Culture] = struct{}{}
		out = append(out, e.Culture)
	}
	sort.Strings(out)
	return out
}

// Due — записи с датой не позже now.
func (s *ScheduleCollection) Due(now time.Time) []ScheduleEntry {
	var out []ScheduleEntry
	for _, e := range s.FullSchedule() {
		if !e.Date.After(now) {
			out = append(out, e)
		}
	}
	return out
}

// Clone возвращает копию расписания.
func (s *ScheduleCollection) Clone() *ScheduleCollection {
	if s == nil {
		return NewScheduleCollection()
	}
	return NewScheduleCollection(s.FullSchedule()...)
}
