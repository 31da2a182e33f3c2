// Package tree хранит лес комментариев в виде плоской арены, индексированной по ID.
//
// Связи родитель/дети хранятся ссылками-идентификаторами, а не вложенными
// структурами: один и тот же комментарий физически существует в одном экземпляре,
// где бы в дереве он ни отображался.
//
// Все записи идут только через Upsert/Merge/PatchCounts/Remove. Каждая мутация -
// один синхронный шаг под мьютексом; наружу отдаются только копии.
package tree

import (
	"sync"
	"time"

	"github.com/pribylovaa/go-comments-client/internal/models"
)

type node struct {
	c        models.Comment // Children всегда nil: структура живёт в parent/children.
	parent   string
	children []string
}

// Store - лес из N независимых корней, адресуемый по ID из любой точки.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node
	roots []string
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{nodes: make(map[string]*node)}
}

// Upsert вставляет комментарий корнем (parentID == "") или ребёнком parentID
// либо сливает его с уже существующим узлом. Рекурсивно обходит c.Children.
//
// Правила слияния:
//   - скалярные поля (content, isEdited, isDeleted, updatedAt, флаги прав) берутся из входящего значения;
//   - дети объединяются по ID: локально загруженные поддеревья, которых нет во входящем значении, сохраняются;
//   - ChildrenLoaded «липкий»: однажды загруженный список не становится «неизвестным».
//
// Возвращает false (no-op), если parentID указан, но такого узла нет.
func (s *Store) Upsert(c models.Comment, parentID string) bool {
	return s.Merge(c, parentID, nil)
}

// Merge - то же, что Upsert, но для узлов, у которых hold(id) == true,
// скаляры не трогаются (дети при этом сливаются). Так загрузчик поддеревьев
// не затирает ещё не подтверждённое оптимистичное состояние.
func (s *Store) Merge(c models.Comment, parentID string, hold func(id string) bool) bool {
	if c.ID == "" || c.ID == parentID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" {
		if _, ok := s.nodes[parentID]; !ok {
			return false
		}
		// Перенос узла внутрь собственного поддерева дал бы цикл.
		if s.isAncestorOrSelf(c.ID, parentID) {
			return false
		}
	}

	s.merge(c, parentID, hold)
	s.redepth(c.ID)

	return true
}

func (s *Store) merge(c models.Comment, parentID string, hold func(id string) bool) {
	n, exists := s.nodes[c.ID]
	if !exists {
		n = &node{c: copyComment(c)}
		s.nodes[c.ID] = n
		s.attach(c.ID, parentID)
	} else {
		if hold == nil || !hold(c.ID) {
			applyScalars(n, c)
		}
		if parentID != "" && parentID != n.parent && !s.isAncestorOrSelf(c.ID, parentID) {
			s.detach(c.ID)
			s.attach(c.ID, parentID)
		}
	}

	if c.ChildrenLoaded {
		n.c.ChildrenLoaded = true
	}

	for _, ch := range c.Children {
		if ch == nil || ch.ID == "" || ch.ID == c.ID {
			continue
		}
		if s.isAncestorOrSelf(ch.ID, c.ID) {
			continue
		}
		s.merge(*ch, c.ID, hold)
	}

	if len(n.children) > n.c.ReplyCount && (hold == nil || !hold(c.ID)) {
		n.c.ReplyCount = len(n.children)
	}
}

// applyScalars переносит серверные скаляры во входящий узел.
// ReplyCount не опускается ниже числа уже загруженных детей:
// удалённые ответы тоже считаются ответами.
func applyScalars(n *node, c models.Comment) {
	n.c.Content = c.Content
	n.c.IsEdited = c.IsEdited
	n.c.IsDeleted = c.IsDeleted
	n.c.UpdatedAt = c.UpdatedAt
	n.c.DeletedAt = cloneTime(c.DeletedAt)
	n.c.CanEdit = c.CanEdit
	n.c.CanDelete = c.CanDelete
	n.c.CanRestore = c.CanRestore
	n.c.ReplyCount = max(c.ReplyCount, len(n.children))

	if c.AuthorID != "" {
		n.c.AuthorID = c.AuthorID
	}
	if c.AuthorName != "" {
		n.c.AuthorName = c.AuthorName
	}
	if c.RootID != "" {
		n.c.RootID = c.RootID
	}
	if !c.CreatedAt.IsZero() {
		n.c.CreatedAt = c.CreatedAt
	}
	if n.parent == "" {
		n.c.Depth = c.Depth
		if c.ParentID != "" {
			n.c.ParentID = c.ParentID
		}
	}
}

// attach вешает узел под parentID или в список корней.
func (s *Store) attach(id, parentID string) {
	n := s.nodes[id]
	if parentID == "" {
		n.parent = ""
		s.roots = append(s.roots, id)
		return
	}

	p := s.nodes[parentID]
	n.parent = parentID
	n.c.ParentID = parentID
	p.children = append(p.children, id)
}

// detach отцепляет узел от родителя (или от списка корней), не трогая поддерево.
func (s *Store) detach(id string) {
	n := s.nodes[id]
	if n.parent == "" {
		s.roots = without(s.roots, id)
		return
	}

	if p, ok := s.nodes[n.parent]; ok {
		p.children = without(p.children, id)
	}
	n.parent = ""
}

// isAncestorOrSelf - является ли a предком b (или самим b).
func (s *Store) isAncestorOrSelf(a, b string) bool {
	for cur := b; cur != ""; {
		if cur == a {
			return true
		}
		n, ok := s.nodes[cur]
		if !ok {
			return false
		}
		cur = n.parent
	}

	return false
}

// redepth выравнивает глубину поддерева: ребёнок = родитель + 1.
// Корни леса сохраняют серверную глубину.
func (s *Store) redepth(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}

	if n.parent != "" {
		if p, ok := s.nodes[n.parent]; ok {
			n.c.Depth = p.c.Depth + 1
		}
	}

	for _, ch := range n.children {
		s.redepth(ch)
	}
}

// Remove удаляет узел вместе со всем загруженным поддеревом.
// Используется только для откатов и когда сервер сообщил, что узла больше нет.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return false
	}

	s.detach(id)
	s.drop(id)

	return true
}

func (s *Store) drop(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}

	for _, ch := range n.children {
		s.drop(ch)
	}
	delete(s.nodes, id)
}

// PatchCounts сдвигает ReplyCount на delta, не опуская ниже нуля.
func (s *Store) PatchCounts(id string, delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return false
	}

	n.c.ReplyCount = max(n.c.ReplyCount+delta, 0)

	return true
}

// GetPath возвращает цепочку ID от корня леса до id включительно.
func (s *Store) GetPath(id string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, false
	}

	var path []string
	for cur := id; cur != ""; cur = s.nodes[cur].parent {
		path = append(path, cur)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, true
}

// Find возвращает глубокую копию узла с загруженным поддеревом.
func (s *Store) Find(id string) (models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return models.Comment{}, false
	}

	return s.snapshot(id), true
}

// Get возвращает копию узла без детей (ChildrenLoaded сохраняется).
func (s *Store) Get(id string) (models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return models.Comment{}, false
	}

	return copyComment(n.c), true
}

// Has - есть ли узел в лесу.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.nodes[id]
	return ok
}

// Roots возвращает глубокие копии всех корней леса в порядке вставки.
func (s *Store) Roots() []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Comment, 0, len(s.roots))
	for _, id := range s.roots {
		out = append(out, s.snapshot(id))
	}

	return out
}

// Len - число узлов в лесу.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nodes)
}

func (s *Store) snapshot(id string) models.Comment {
	n := s.nodes[id]
	c := copyComment(n.c)

	if len(n.children) > 0 {
		c.Children = make([]*models.Comment, 0, len(n.children))
		for _, ch := range n.children {
			cc := s.snapshot(ch)
			c.Children = append(c.Children, &cc)
		}
	}

	return c
}

func copyComment(c models.Comment) models.Comment {
	c.Children = nil
	c.DeletedAt = cloneTime(c.DeletedAt)

	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t
	return &v
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}

	return ids
}
