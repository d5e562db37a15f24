// Package ratelimit реализует token bucket для контроля частоты
// запросов к REST API бирж.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket лимитер.
//
// Ведро наполняется со скоростью rate токенов/сек до ёмкости burst,
// каждый запрос потребляет один токен. Burst выше rate нужен для
// параллельной отправки двух ног сделки: обе проходят без ожидания.
//
// Использование:
//
//	limiter := ratelimit.NewRateLimiter(50, 100)
//	if err := limiter.Wait(ctx); err != nil { ... }
type RateLimiter struct {
	rate       float64 // токенов в секунду
	burst      float64 // ёмкость ведра
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter создаёт лимитер. Публичные лимиты mexc, gate и
// bitget позволяют 50 req/sec с burst 100 для одного ключа.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // стартуем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены по прошедшему времени. Вызывается под локом.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		// Время до появления следующего токена
		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow забирает токен без блокировки. false - токенов нет.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens возвращает текущее количество доступных токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
