package state

import (
	"sync"
	"time"
)

// FieldGroup - группа полей снапшота, которую команда ожидает изменить.
// У каждой группы не более одного активного окна, новая команда того же
// вида сбрасывает окно заново
type FieldGroup string

const (
	// GroupRunning защищает флаг запуска после start/stop/panic
	GroupRunning FieldGroup = "running"

	// GroupSymbol защищает торговый символ после его смены
	GroupSymbol FieldGroup = "symbol"

	// GroupBalances защищает балансы и флаг окружения после switch_mode/reset
	GroupBalances FieldGroup = "balances"

	// GroupRisk защищает процент риска после обновления конфигурации
	GroupRisk FieldGroup = "risk"

	// GroupPosition защищает активную позицию после ручного ордера/ликвидации
	GroupPosition FieldGroup = "position"
)

// ImmunitySet хранит активные окна иммунитета по группам полей.
// Пока окно группы не истекло, merge-точка не даёт свежему снапшоту
// перетереть локально установленное значение (сервер ещё может отдавать
// устаревшие данные, пока команда распространяется)
type ImmunitySet struct {
	mu      sync.Mutex
	expires map[FieldGroup]time.Time

	// now инжектируется в тестах для детерминированного времени
	now func() time.Time
}

// NewImmunitySet создаёт пустой набор окон
func NewImmunitySet() *ImmunitySet {
	return &ImmunitySet{
		expires: make(map[FieldGroup]time.Time),
		now:     time.Now,
	}
}

// Hold открывает (или сбрасывает заново) окно иммунитета группы
func (s *ImmunitySet) Hold(group FieldGroup, d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[group] = s.now().Add(d)
}

// Held возвращает true, если окно группы ещё активно.
// Истёкшие окна лениво удаляются
func (s *ImmunitySet) Held(group FieldGroup) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[group]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.expires, group)
		return false
	}
	return true
}

// Release досрочно закрывает окно группы
func (s *ImmunitySet) Release(group FieldGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, group)
}

// Clear сбрасывает все окна. Используется при logout
func (s *ImmunitySet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires = make(map[FieldGroup]time.Time)
}
