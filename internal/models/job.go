package models

import "encoding/json"

// JobState - состояние конечного автомата backtest-задачи.
// Переходы строго вперёд: Idle -> Submitting -> Polling -> {Completed | Failed}.
// Терминальные состояния не покидаются (задача не "воскресает")
type JobState string

const (
	JobIdle       JobState = "IDLE"
	JobSubmitting JobState = "SUBMITTING"
	JobPolling    JobState = "POLLING"
	JobCompleted  JobState = "COMPLETED"
	JobFailed     JobState = "FAILED"
)

// jobTransitions определяет допустимые переходы между состояниями
var jobTransitions = map[JobState][]JobState{
	JobIdle:       {JobSubmitting},
	JobSubmitting: {JobPolling, JobFailed},
	JobPolling:    {JobCompleted, JobFailed},
	JobCompleted:  {},
	JobFailed:     {},
}

// CanTransitionJob проверяет допустимость перехода
func CanTransitionJob(from, to JobState) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для терминальных состояний
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// BacktestConfig - конфигурация запуска backtest (wire-формат /backtest/run)
type BacktestConfig struct {
	Symbol      string  `json:"symbol"`
	Mode        string  `json:"mode"` // "single" или "portfolio"
	Timeframe   string  `json:"timeframe"`
	Days        int     `json:"days"`
	Balance     float64 `json:"balance"`
	Risk        float64 `json:"risk"`
	IgnoreTrend bool    `json:"ignore_trend"`
}

// BacktestStatus - один ответ /backtest/status/{id}.
// Сервер не гарантирует монотонность progress (ответы могут приходить
// не по порядку); progress = -1 сигнализирует сбой наравне с error
type BacktestStatus struct {
	Progress float64         `json:"progress"`
	Message  string          `json:"message"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Terminal возвращает true если ответ статуса терминальный
func (st *BacktestStatus) Terminal() bool {
	return st.Failed() || st.Done()
}

// Failed - сервер сообщил об ошибке задачи
func (st *BacktestStatus) Failed() bool {
	return st.Error != "" || st.Progress < 0
}

// Done - задача успешно завершена: прогресс 100 И есть результат.
// Прогресс 100 без результата завершением не считается
func (st *BacktestStatus) Done() bool {
	return st.Progress >= 100 && len(st.Result) > 0
}

// BacktestJob - наблюдаемое состояние задачи на стороне клиента
type BacktestJob struct {
	JobID    string          `json:"job_id"`
	State    JobState        `json:"state"`
	Progress float64         `json:"progress"`
	// DisplayProgress зажат к бегущему максимуму: дубликат или устаревший
	// ответ статуса не откатывает индикатор назад
	DisplayProgress float64         `json:"display_progress"`
	Message         string          `json:"message"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}
