package poller

import (
	"context"
	"log"
	"time"

	"sniperctl/internal/metrics"
	"sniperctl/internal/models"
)

// MarketSource - источник снапшотов. Реализуется API клиентом
type MarketSource interface {
	Market(ctx context.Context) (*models.MarketSnapshot, error)
}

// MarketSink - приёмник результатов тика. Реализуется state.Store
type MarketSink interface {
	Apply(snapshot *models.MarketSnapshot)
	MarkOffline()
}

// MarketPoller опрашивает /market с фиксированным интервалом.
//
// Цикл самоперепланирующийся: следующий тик ставится в расписание только
// ПОСЛЕ завершения предыдущего, поэтому в полёте никогда нет более одного
// запроса, даже если сервер отвечает дольше интервала. Сбой тика не
// фатален: связь помечается offline, последний снапшот остаётся на месте,
// цикл продолжается. Остановка кооперативная через контекст, проверяемый
// перед каждым перепланированием
type MarketPoller struct {
	source   MarketSource
	sink     MarketSink
	interval time.Duration

	// force будит цикл досрочно после команды, чтобы не ждать интервал
	force chan struct{}
}

// NewMarketPoller создаёт поллер. Первый тик выполняется сразу при Run
func NewMarketPoller(source MarketSource, sink MarketSink, interval time.Duration) *MarketPoller {
	return &MarketPoller{
		source:   source,
		sink:     sink,
		interval: interval,
		force:    make(chan struct{}, 1),
	}
}

// Run крутит цикл опроса до отмены контекста. Блокирует вызывающего,
// запускать в отдельной горутине
func (p *MarketPoller) Run(ctx context.Context) {
	for {
		p.tick(ctx)

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.force:
			timer.Stop()
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// ForceRefresh будит цикл для немедленного тика (после успешной команды).
// Окна иммунитета при этом действуют как обычно. Неблокирующий:
// если пробуждение уже запрошено, повторное схлопывается
func (p *MarketPoller) ForceRefresh() {
	select {
	case p.force <- struct{}{}:
	default:
	}
}

func (p *MarketPoller) tick(ctx context.Context) {
	start := time.Now()
	snapshot, err := p.source.Market(ctx)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.RecordPollTick("market", false, elapsed)
		metrics.SetConnected(false)
		p.sink.MarkOffline()
		if !models.IsTransient(err) && ctx.Err() == nil {
			log.Printf("market poller: fetch failed: %v", err)
		}
		return
	}

	metrics.RecordPollTick("market", true, elapsed)
	metrics.SetConnected(true)
	p.sink.Apply(snapshot)
}
