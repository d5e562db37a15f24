package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// executor.go - исполнитель двуногих сделок
//
// Обе ноги отправляются ОДНОВРЕМЕННО (goroutines): общее время =
// max(латентность_A, латентность_B), а не сумма. При частичном
// исполнении выполняется best-effort отмена успешной ноги; встречный
// рыночный ордер НЕ отправляется - это удвоило бы экспозицию на уже
// исполненной ноге.

// Notifier - исходящий канал уведомлений.
// Send возвращает false если сообщение не доставлено; доставка
// best-effort и не влияет на исход сделки.
type Notifier interface {
	Send(text string) bool
}

// Executor исполняет входы и выходы по паре бирж
type Executor struct {
	router   *exchange.Router
	notifier Notifier
	cfg      config.TradingConfig
}

// LegResult - результат одной ноги
type LegResult struct {
	Venue exchange.Venue
	Side  string
	Order *exchange.Order
	Err   error
}

// TradeResult - явный исход сделки. Ошибки не пробрасываются наверх:
// монитор потребляет только (Success, Message).
type TradeResult struct {
	Success     bool
	Message     string
	Compensated bool // была ли попытка отмены успешной ноги
	LegA        *exchange.Order
	LegB        *exchange.Order
	Notional    float64
}

// NewExecutor создаёт исполнитель
func NewExecutor(router *exchange.Router, notifier Notifier, cfg config.TradingConfig) *Executor {
	return &Executor{
		router:   router,
		notifier: notifier,
		cfg:      cfg,
	}
}

// sidesFor возвращает стороны ног для направления входа.
// long_gap (A переоценена): sell на A, buy на B. short_gap - зеркально.
func sidesFor(direction Direction) (sideA, sideB string) {
	if direction == DirectionLongGap {
		return exchange.SideSell, exchange.SideBuy
	}
	return exchange.SideBuy, exchange.SideSell
}

// ExecuteEntry выполняет вход по торговому сигналу.
// Размер сделки: нотионал сигнала * safety factor, с учётом MAX_NOTIONAL.
func (e *Executor) ExecuteEntry(ctx context.Context, sig TradeSignal) TradeResult {
	symbol := sig.Sample.Symbol
	sideA, sideB := sidesFor(sig.Direction)

	notional := ApplyLimits(sig.Notional, e.cfg.SafetyFactor, e.cfg.MaxNotional)
	if notional <= 0 {
		RecordTrade(symbol, "skipped")
		return TradeResult{
			Success: false,
			Message: fmt.Sprintf("no tradable notional for %s", symbol),
		}
	}

	exA, errA := e.router.Get(sig.Sample.VenueA)
	exB, errB := e.router.Get(sig.Sample.VenueB)
	if errA != nil || errB != nil {
		RecordTrade(symbol, "failed")
		return TradeResult{
			Success: false,
			Message: fmt.Sprintf("venue unavailable: a=%v b=%v", errA, errB),
		}
	}

	// Pre-flight: cross margin + плечо 1 на обеих ногах.
	// Ошибки здесь не фатальны: биржа могла уже быть в нужном режиме.
	e.preflight(ctx, exA, symbol)
	e.preflight(ctx, exB, symbol)

	result := e.submitLegs(ctx, symbol, exA, sideA, exB, sideB, notional)
	result.Notional = notional

	if result.Success {
		RecordTrade(symbol, "success")
		e.notifyEntry(sig, notional, result)
	} else if result.Compensated {
		RecordTrade(symbol, "compensated")
		e.notifyFailure(sig, result)
	} else {
		RecordTrade(symbol, "failed")
		e.notifyFailure(sig, result)
	}

	return result
}

// preflight устанавливает режим маржи и плечо для одной ноги
func (e *Executor) preflight(ctx context.Context, ex exchange.Exchange, symbol string) {
	if err := ex.SetMarginMode(ctx, symbol, exchange.MarginModeCross); err != nil {
		log.Printf("[executor] %s: set margin mode failed (continuing): %v", ex.GetName(), err)
	}
	if err := ex.SetLeverage(ctx, symbol, exchange.DefaultLeverage); err != nil {
		log.Printf("[executor] %s: set leverage failed (continuing): %v", ex.GetName(), err)
	}
}

// submitLegs отправляет обе ноги параллельно и сводит результаты
func (e *Executor) submitLegs(ctx context.Context, symbol string,
	exA exchange.Exchange, sideA string,
	exB exchange.Exchange, sideB string,
	notional float64) TradeResult {

	chA := make(chan LegResult, 1)
	chB := make(chan LegResult, 1)

	go func() {
		order, err := exA.PlaceMarketOrder(ctx, symbol, sideA, notional)
		chA <- LegResult{Venue: exA.GetName(), Side: sideA, Order: order, Err: err}
	}()

	go func() {
		order, err := exB.PlaceMarketOrder(ctx, symbol, sideB, notional)
		chB <- LegResult{Venue: exB.GetName(), Side: sideB, Order: order, Err: err}
	}()

	// Слушаем оба канала одновременно: медленная нога не блокирует
	// приём результата быстрой
	var resA, resB LegResult
	var gotA, gotB bool

	for !gotA || !gotB {
		select {
		case resA = <-chA:
			gotA = true
		case resB = <-chB:
			gotB = true
		case <-ctx.Done():
			// Таймаут: отменяем то, что уже успело подтвердиться
			compensated := false
			if gotA && resA.Err == nil {
				e.compensate(symbol, exA, resA.Order)
				compensated = true
			}
			if gotB && resB.Err == nil {
				e.compensate(symbol, exB, resB.Order)
				compensated = true
			}
			return TradeResult{
				Success:     false,
				Compensated: compensated,
				Message:     fmt.Sprintf("execution timed out: %v", ctx.Err()),
			}
		}
	}

	if resA.Err == nil {
		RecordLegLatency(string(resA.Venue), resA.Side, resA.Order.LatencyMs)
	}
	if resB.Err == nil {
		RecordLegLatency(string(resB.Venue), resB.Side, resB.Order.LatencyMs)
	}

	// Обе ноги успешны
	if resA.Err == nil && resB.Err == nil {
		return TradeResult{
			Success: true,
			Message: fmt.Sprintf("both legs filled: %s %s / %s %s",
				resA.Venue, resA.Side, resB.Venue, resB.Side),
			LegA: resA.Order,
			LegB: resB.Order,
		}
	}

	// Ровно одна нога успешна: best-effort отмена
	if resA.Err == nil && resB.Err != nil {
		e.compensate(symbol, exA, resA.Order)
		return TradeResult{
			Success:     false,
			Compensated: true,
			Message: fmt.Sprintf("leg %s failed (%v), cancel attempted on %s",
				resB.Venue, resB.Err, resA.Venue),
			LegA: resA.Order,
		}
	}
	if resB.Err == nil && resA.Err != nil {
		e.compensate(symbol, exB, resB.Order)
		return TradeResult{
			Success:     false,
			Compensated: true,
			Message: fmt.Sprintf("leg %s failed (%v), cancel attempted on %s",
				resA.Venue, resA.Err, resB.Venue),
			LegB: resB.Order,
		}
	}

	// Обе провалились
	return TradeResult{
		Success: false,
		Message: fmt.Sprintf("both legs failed: %s=%v, %s=%v",
			resA.Venue, resA.Err, resB.Venue, resB.Err),
	}
}

// compensate отменяет успешную ногу при провале второй.
// Отмена может не успеть (рыночный ордер уже исполнен) - это
// логируется, но исход сделки не меняет.
func (e *Executor) compensate(symbol string, ex exchange.Exchange, order *exchange.Order) {
	if order == nil || order.ID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ex.CancelOrder(ctx, order.ID, symbol); err != nil {
		log.Printf("[executor] %s: compensation cancel for order %s failed: %v",
			ex.GetName(), order.ID, err)
	}
}

// ClosePositions закрывает позиции по символу на обеих биржах пары.
// Структурно идентично входу: читаем позиции, определяем
// закрывающую сторону (противоположную текущей), отправляем обе ноги
// тем же параллельным путём.
func (e *Executor) ClosePositions(ctx context.Context, symbol string, pair VenuePair) TradeResult {
	exA, errA := e.router.Get(pair.A)
	exB, errB := e.router.Get(pair.B)
	if errA != nil || errB != nil {
		return TradeResult{
			Success: false,
			Message: fmt.Sprintf("venue unavailable: a=%v b=%v", errA, errB),
		}
	}

	posA, errA := exA.GetPosition(ctx, symbol)
	posB, errB := exB.GetPosition(ctx, symbol)
	if errA != nil || errB != nil {
		return TradeResult{
			Success: false,
			Message: fmt.Sprintf("position read failed: a=%v b=%v", errA, errB),
		}
	}
	if posA == nil && posB == nil {
		return TradeResult{
			Success: false,
			Message: fmt.Sprintf("no open positions for %s", symbol),
		}
	}

	tickerA, err := exA.GetTicker(ctx, symbol)
	if err != nil || !tickerA.OK() {
		return TradeResult{Success: false, Message: fmt.Sprintf("no reference price for %s", symbol)}
	}

	closeSide := func(pos *exchange.Position) string {
		if pos.Side == exchange.SideLong {
			return exchange.SideSell
		}
		return exchange.SideBuy
	}

	// Нотионал закрытия от текущей цены и размера позиции
	var sideA, sideB string
	var notional float64
	if posA != nil {
		sideA = closeSide(posA)
		notional = posA.Contracts * tickerA.Last
	}
	if posB != nil {
		sideB = closeSide(posB)
		if notional == 0 {
			notional = posB.Contracts * tickerA.Last
		}
	}

	// Одна нога могла быть закрыта вручную: закрываем оставшуюся
	if posA == nil || posB == nil {
		var ex exchange.Exchange
		var side string
		var pos *exchange.Position
		if posA != nil {
			ex, side, pos = exA, sideA, posA
		} else {
			ex, side, pos = exB, sideB, posB
		}
		order, err := ex.PlaceMarketOrder(ctx, symbol, side, pos.Contracts*tickerA.Last)
		if err != nil {
			return TradeResult{Success: false, Message: fmt.Sprintf("single-leg close failed: %v", err)}
		}
		return TradeResult{
			Success:  true,
			Message:  fmt.Sprintf("single leg closed on %s (order %s)", ex.GetName(), order.ID),
			Notional: order.Notional,
		}
	}

	result := e.submitLegs(ctx, symbol, exA, sideA, exB, sideB, notional)
	result.Notional = notional

	if result.Success {
		e.notifyClose(symbol, posA, posB)
	}

	return result
}

// notifyEntry отправляет уведомление об успешном входе
func (e *Executor) notifyEntry(sig TradeSignal, notional float64, result TradeResult) {
	if e.notifier == nil {
		return
	}

	sideA, sideB := sidesFor(sig.Direction)
	text := fmt.Sprintf(
		"✅ Trade executed\n%s %s / %s %s\nSymbol: %s\nGap: %+.4f%%\nPrices: %.6f / %.6f\nNotional: %.2f USDT\ncross mode, 1x leverage\n%s",
		sig.Sample.VenueA.DisplayName(), sideA,
		sig.Sample.VenueB.DisplayName(), sideB,
		sig.Sample.Symbol,
		sig.Sample.GapPct,
		sig.Sample.PriceA, sig.Sample.PriceB,
		notional,
		utils.FormatKST(sig.Sample.TsKst),
	)

	if !e.notifier.Send(text) {
		log.Printf("[executor] entry notification not delivered")
	}
}

// notifyFailure отправляет уведомление о провале входа:
// частичное исполнение с попыткой отмены или отказ обеих ног
func (e *Executor) notifyFailure(sig TradeSignal, result TradeResult) {
	if e.notifier == nil {
		return
	}

	outcome := "no compensation"
	if result.Compensated {
		outcome = "compensation attempted"
	}

	text := fmt.Sprintf(
		"⚠️ Trade failed\nSymbol: %s\nGap: %+.4f%%\n%s\nOutcome: failed, %s\n%s",
		sig.Sample.Symbol,
		sig.Sample.GapPct,
		result.Message,
		outcome,
		utils.FormatKST(utils.NowKST()),
	)

	if !e.notifier.Send(text) {
		log.Printf("[executor] failure notification not delivered")
	}
}

// notifyClose отправляет сводку PnL после закрытия
func (e *Executor) notifyClose(symbol string, posA, posB *exchange.Position) {
	if e.notifier == nil {
		return
	}

	text := fmt.Sprintf(
		"🔒 Positions closed\nSymbol: %s\n%s %s %.4f (PnL %.4f USDT)\n%s %s %.4f (PnL %.4f USDT)\n%s",
		symbol,
		posA.Symbol, posA.Side, posA.Contracts, posA.UnrealizedPnl,
		posB.Symbol, posB.Side, posB.Contracts, posB.UnrealizedPnl,
		utils.FormatKST(utils.NowKST()),
	)

	if !e.notifier.Send(text) {
		log.Printf("[executor] close notification not delivered")
	}
}
