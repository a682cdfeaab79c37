package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RootID — идентификатор виртуального корня дерева.
const RootID int64 = -1

// SystemActorID — идентификатор системного пользователя (плановая публикация).
const SystemActorID int64 = -1

// Node — узел дерева. Хранится в таблице node.
type Node struct {
	// ID — целочисленный идентификатор (уникален)
	ID int64
	// Key — глобальный идентификатор (уникален)
	Key uuid.UUID
	// ParentID — идентификатор родителя (RootID для узлов верхнего уровня)
	ParentID int64
	// Path — цепочка идентификаторов предков через запятую, начиная с "-1" и заканчивая ID
	Path string
	// Level — число сегментов пути без корня "-1"
	Level int
	// SortOrder — порядок среди соседей
	SortOrder int
	// Trashed — узел в корзине
	Trashed bool
	// ObjectType — тип объекта
	ObjectType ObjectType
	// Name — имя узла (для инвариантного контента — имя публикации)
	Name string
	// CreatorID — идентификатор создателя (может отсутствовать)
	CreatorID *int64
	// CreatedAt — время создания
	CreatedAt time.Time
}

// TreeEntityPath — пара идентификатор/путь.
type TreeEntityPath struct {
	ID   int64
	Path string
}

// BuildPath строит путь узла по пути родителя.
// Пустой путь родителя означает виртуальный корень.
func BuildPath(parentPath string, id int64) string {
	if parentPath == "" {
		parentPath = strconv.FormatInt(RootID, 10)
	}
	return parentPath + "," + strconv.FormatInt(id, 10)
}

// ParsePath разбирает путь в список идентификаторов без корня "-1".
func ParsePath(path string) ([]int64, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь")
	}
	parts := strings.Split(path, ",")
	ids := make([]int64, 0, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный сегмент пути %q: %w", p, err)
		}
		if i == 0 && id == RootID {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LevelOf возвращает уровень узла по его пути.
func LevelOf(path string) int {
	ids, err := ParsePath(path)
	if err != nil {
		return 0
	}
	return len(ids)
}

// DescendantPrefix — префикс пути, общий для всех потомков узла.
func (n *Node) DescendantPrefix() string {
	return n.Path + ","
}

// IsDescendantOf — узел лежит в поддереве root (сам root не считается).
func (n *Node) IsDescendantOf(root *Node) bool {
	return strings.HasPrefix(n.Path, root.DescendantPrefix())
}

// AncestorIDs — идентификаторы предков от верхнего уровня к родителю.
func (n *Node) AncestorIDs() []int64 {
	ids, err := ParsePath(n.Path)
	if err != nil || len(ids) == 0 {
		return nil
	}
	return ids[:len(ids)-1]
}
