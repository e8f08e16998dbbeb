package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"sniperctl/internal/metrics"
	"sniperctl/internal/models"
)

// JobClient - операции backtest API. Реализуется API клиентом
type JobClient interface {
	RunBacktest(ctx context.Context, cfg models.BacktestConfig) (string, error)
	BacktestStatus(ctx context.Context, jobID string) (*models.BacktestStatus, error)
}

// JobListener получает копию состояния задачи после каждого изменения
type JobListener func(job models.BacktestJob)

// JobPoller управляет жизненным циклом одной backtest-задачи:
// submit -> получение job id -> опрос статуса фиксированным тикером ->
// терминальное состояние. Поллер независим от Market Poller и не делит
// с ним состояние.
//
// В отличие от опроса /market здесь используется обычный тикер: статусные
// запросы дёшевы, перекрытие тиков допустимо, а дубликаты терминальных
// ответов гасятся идемпотентной обработкой. Тикер освобождается на
// каждом пути выхода (завершение, ошибка, Close), чтобы не оставить
// фонового опроса после закрытия владельца
type JobPoller struct {
	client   JobClient
	interval time.Duration

	mu     sync.Mutex
	job    models.BacktestJob
	cancel context.CancelFunc

	listeners []JobListener
}

// NewJobPoller создаёт поллер в состоянии Idle
func NewJobPoller(client JobClient, interval time.Duration) *JobPoller {
	return &JobPoller{
		client:   client,
		interval: interval,
		job:      models.BacktestJob{State: models.JobIdle},
	}
}

// Subscribe регистрирует подписчика. Вызывать до первого Submit
func (jp *JobPoller) Subscribe(l JobListener) {
	jp.listeners = append(jp.listeners, l)
}

// Job возвращает копию текущего состояния задачи
func (jp *JobPoller) Job() models.BacktestJob {
	jp.mu.Lock()
	defer jp.mu.Unlock()
	return jp.job
}

// Submit отправляет новую задачу. Предыдущий опрос (если шёл) глушится:
// одновременно отслеживается не более одной задачи
func (jp *JobPoller) Submit(ctx context.Context, cfg models.BacktestConfig) (string, error) {
	jp.mu.Lock()
	jp.stopLocked()
	jp.job = models.BacktestJob{State: models.JobSubmitting}
	jp.mu.Unlock()
	jp.publish()

	jobID, err := jp.client.RunBacktest(ctx, cfg)
	if err != nil {
		jp.mu.Lock()
		jp.job.State = models.JobFailed
		jp.job.Error = err.Error()
		jp.mu.Unlock()
		jp.publish()
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	jp.mu.Lock()
	jp.job.JobID = jobID
	jp.job.State = models.JobPolling
	jp.cancel = cancel
	jp.mu.Unlock()
	jp.publish()

	go jp.watch(watchCtx, jobID)
	return jobID, nil
}

// Close останавливает активный опрос без изменения состояния задачи.
// Идемпотентен
func (jp *JobPoller) Close() {
	jp.mu.Lock()
	jp.stopLocked()
	jp.mu.Unlock()
}

// Clear глушит опрос и возвращает поллер в Idle (владелец закрыл
// представление задачи)
func (jp *JobPoller) Clear() {
	jp.mu.Lock()
	jp.stopLocked()
	jp.job = models.BacktestJob{State: models.JobIdle}
	jp.mu.Unlock()
	jp.publish()
	metrics.JobProgress.Set(0)
}

// stopLocked освобождает таймер опроса. Безопасен при повторном вызове
func (jp *JobPoller) stopLocked() {
	if jp.cancel != nil {
		jp.cancel()
		jp.cancel = nil
	}
}

func (jp *JobPoller) watch(ctx context.Context, jobID string) {
	ticker := time.NewTicker(jp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := jp.client.BacktestStatus(ctx, jobID)
		if err != nil {
			// Транзиентный сбой статуса не роняет опрос: следующий тик
			// повторит запрос. Логируются только не-сетевые ошибки
			if !models.IsTransient(err) && ctx.Err() == nil {
				log.Printf("job poller: status fetch failed for %s: %v", jobID, err)
			}
			continue
		}

		if terminal := jp.apply(jobID, status); terminal {
			return
		}
	}
}

// apply вливает один ответ статуса. Возвращает true, когда задача
// достигла терминального состояния и опрос надо прекратить.
//
// Дубликат терминального ответа (запрос, ушедший до остановки тикера)
// не производит второго перехода: терминальные состояния не покидаются
func (jp *JobPoller) apply(jobID string, status *models.BacktestStatus) bool {
	jp.mu.Lock()

	if jp.job.JobID != jobID || jp.job.State.IsTerminal() {
		jp.mu.Unlock()
		return true
	}

	jp.job.Progress = status.Progress
	jp.job.Message = status.Message
	// Монотонность прогресса сервером не гарантируется: отображаемое
	// значение зажимается к бегущему максимуму
	if status.Progress > jp.job.DisplayProgress {
		jp.job.DisplayProgress = status.Progress
	}

	terminal := false
	switch {
	case status.Failed():
		if models.CanTransitionJob(jp.job.State, models.JobFailed) {
			jp.job.State = models.JobFailed
			jp.job.Error = status.Error
			if jp.job.Error == "" {
				jp.job.Error = "backtest aborted by server"
			}
			metrics.JobsTotal.WithLabelValues("failed").Inc()
		}
		terminal = true
	case status.Done():
		if models.CanTransitionJob(jp.job.State, models.JobCompleted) {
			jp.job.State = models.JobCompleted
			jp.job.Result = status.Result
			jp.job.DisplayProgress = 100
			metrics.JobsTotal.WithLabelValues("completed").Inc()
		}
		terminal = true
	}

	if terminal {
		jp.stopLocked()
	}
	display := jp.job.DisplayProgress
	jp.mu.Unlock()

	metrics.JobProgress.Set(display)
	jp.publish()
	return terminal
}

func (jp *JobPoller) publish() {
	jp.mu.Lock()
	job := jp.job
	listeners := jp.listeners
	jp.mu.Unlock()

	for _, l := range listeners {
		l(job)
	}
}
