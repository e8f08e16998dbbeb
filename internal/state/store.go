package state

import (
	"log"
	"sync"
	"time"

	"sniperctl/internal/models"
)

// Persister сохраняет последний подтверждённый снапшот в durable кэш.
// Реализуется репозиторием, в тестах подменяется моком
type Persister interface {
	SaveSnapshot(snapshot *models.MarketSnapshot) error
}

// Listener получает пары (предыдущий, текущий) снапшотов после каждой
// публикации. Оба аргумента - глубокие копии: подписчик может читать их
// без синхронизации. Публикации сериализованы: listener'ы никогда не
// вызываются конкурентно, и порядок пар совпадает с порядком применения
type Listener func(prev, cur *models.MarketSnapshot)

// Store - единственная merge-точка наблюдаемого состояния бота.
//
// Три продюсера пишут через неё: тики Market Poller, оптимистичные
// локальные правки Command Dispatcher и гидратация из кэша при старте.
// Прямые частичные обновления в обход Store запрещены: именно здесь
// применяются окна иммунитета и рассылаются пары снапшотов подписчикам
// (reconciler, websocket hub, метрики)
type Store struct {
	// pubMu сериализует цепочку "мутация -> публикация" целиком:
	// подписчики видят пары снапшотов строго в порядке применения,
	// и два продюсера никогда не зовут один listener конкурентно.
	// Reconciler полагается на это: его prev не защищён своим мьютексом
	pubMu sync.Mutex

	mu       sync.Mutex
	snapshot *models.MarketSnapshot

	immunity  *ImmunitySet
	persister Persister
	listeners []Listener
}

// NewStore создаёт пустой Store в состоянии "connecting"
func NewStore(immunity *ImmunitySet, persister Persister) *Store {
	if immunity == nil {
		immunity = NewImmunitySet()
	}
	return &Store{
		snapshot: &models.MarketSnapshot{
			Connection: models.ConnectionConnecting,
			History:    []models.Trade{},
		},
		immunity:  immunity,
		persister: persister,
	}
}

// Immunity возвращает набор окон для открытия их диспетчером команд
func (st *Store) Immunity() *ImmunitySet {
	return st.immunity
}

// Subscribe регистрирует подписчика. Вызывать до старта поллеров:
// список не защищён от конкурентной модификации после запуска
func (st *Store) Subscribe(l Listener) {
	st.listeners = append(st.listeners, l)
}

// Snapshot возвращает глубокую копию текущего состояния
func (st *Store) Snapshot() *models.MarketSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot.Clone()
}

// Apply вливает свежий серверный снапшот.
//
// Каждое поле полностью замещает предыдущее значение, кроме групп под
// активным окном иммунитета: те удерживаются на последнем локально
// установленном значении, чтобы 1-2 ближайших тика не "отбили" назад
// оптимистичную правку, пока backend распространяет команду
func (st *Store) Apply(incoming *models.MarketSnapshot) {
	if incoming == nil {
		return
	}

	st.pubMu.Lock()
	defer st.pubMu.Unlock()

	st.mu.Lock()
	prev := st.snapshot
	merged := incoming.Clone()
	merged.Connection = models.ConnectionConnected
	if merged.ReceivedAt.IsZero() {
		merged.ReceivedAt = time.Now()
	}
	if merged.History == nil {
		merged.History = []models.Trade{}
	}

	if st.immunity.Held(GroupRunning) {
		merged.Running = prev.Running
	}
	if st.immunity.Held(GroupSymbol) {
		merged.Symbol = prev.Symbol
	}
	if st.immunity.Held(GroupBalances) {
		merged.Balances = prev.Balances
		merged.IsTestnet = prev.IsTestnet
	}
	if st.immunity.Held(GroupRisk) {
		merged.RiskPct = prev.RiskPct
	}
	if st.immunity.Held(GroupPosition) {
		if prev.ActiveTrade != nil {
			t := *prev.ActiveTrade
			merged.ActiveTrade = &t
		} else {
			merged.ActiveTrade = nil
		}
	}

	st.snapshot = merged
	st.mu.Unlock()

	st.persist(merged)
	st.publish(prev, merged)
}

// ApplyLocal выполняет оптимистичную локальную правку из диспетчера
// команд (единственный легальный способ частичного обновления).
// Правка не персистится: durable кэш хранит только подтверждённые
// сервером снапшоты
func (st *Store) ApplyLocal(mutate func(s *models.MarketSnapshot)) {
	if mutate == nil {
		return
	}

	st.pubMu.Lock()
	defer st.pubMu.Unlock()

	st.mu.Lock()
	prev := st.snapshot
	cur := prev.Clone()
	mutate(cur)
	st.snapshot = cur
	st.mu.Unlock()

	st.publish(prev, cur)
}

// MarkOffline помечает потерю связи, НЕ сбрасывая остальные данные:
// последний известный снапшот остаётся на месте
func (st *Store) MarkOffline() {
	st.pubMu.Lock()
	defer st.pubMu.Unlock()

	st.mu.Lock()
	prev := st.snapshot
	if prev.Connection == models.ConnectionOffline {
		st.mu.Unlock()
		return
	}
	cur := prev.Clone()
	cur.Connection = models.ConnectionOffline
	st.snapshot = cur
	st.mu.Unlock()

	st.publish(prev, cur)
}

// Hydrate загружает снапшот из durable кэша при старте процесса.
// Связь при этом ещё не установлена, поэтому статус остаётся
// "connecting", а ReceivedAt указывает на момент исходного сохранения
func (st *Store) Hydrate(cached *models.MarketSnapshot) {
	if cached == nil {
		return
	}

	st.mu.Lock()
	cur := cached.Clone()
	cur.Connection = models.ConnectionConnecting
	if cur.History == nil {
		cur.History = []models.Trade{}
	}
	st.snapshot = cur
	st.mu.Unlock()
}

// Reset очищает состояние при logout
func (st *Store) Reset() {
	st.mu.Lock()
	st.snapshot = &models.MarketSnapshot{
		Connection: models.ConnectionConnecting,
		History:    []models.Trade{},
	}
	st.immunity.Clear()
	st.mu.Unlock()
}

func (st *Store) persist(s *models.MarketSnapshot) {
	if st.persister == nil {
		return
	}
	if err := st.persister.SaveSnapshot(s); err != nil {
		log.Printf("state: failed to persist snapshot: %v", err)
	}
}

func (st *Store) publish(prev, cur *models.MarketSnapshot) {
	for _, l := range st.listeners {
		l(prev.Clone(), cur.Clone())
	}
}
