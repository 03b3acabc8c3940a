package domain

import "time"

// RetryPolicy — политика повторных попыток для шагов.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts"`

	// InitialDelay — начальная задержка перед повтором.
	InitialDelay time.Duration `json:"initial_delay"`

	// MaxDelay — верхняя граница задержки.
	MaxDelay time.Duration `json:"max_delay"`
}

// DefaultRetryPolicy — политика по умолчанию: 3 попытки,
// экспоненциальная задержка 500ms..4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
	}
}

// Backoff вычисляет задержку перед попыткой attempt (нумерация с 1:
// после первой неудачной попытки attempt=1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
