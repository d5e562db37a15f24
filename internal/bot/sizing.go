package bot

import (
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// sizing.go - расчёт размера сделки от ликвидности стаканов
//
// Обе ноги должны исполниться рыночными ордерами без проскальзывания
// глубже верхнего уровня, поэтому размер ограничен худшим (наименьшим)
// из четырёх верхних нотионалов: ask и bid обеих бирж.

// VenueNotional возвращает минимальный нотионал верхних уровней одного
// стакана (ask и bid) в USDT.
//
// Возвращает 0 если любая из сторон пуста - стакан непригоден
// для торговли на этом тике.
func VenueNotional(book *exchange.OrderBook) float64 {
	ask := book.BestAsk()
	bid := book.BestBid()

	if ask == nil || bid == nil {
		return 0
	}

	return utils.MinOf(
		utils.TopNotional(ask.Price, ask.Volume),
		utils.TopNotional(bid.Price, bid.Volume),
	)
}

// TradableNotional возвращает минимальный нотионал верхних уровней
// двух стаканов в USDT. 0 если любой из стаканов пуст с любой стороны.
func TradableNotional(bookA, bookB *exchange.OrderBook) float64 {
	return utils.MinOf(VenueNotional(bookA), VenueNotional(bookB))
}

// ApplyLimits применяет к сырому нотионалу safety factor и верхний
// предел конфигурации. maxNotional == 0 означает отсутствие предела.
func ApplyLimits(notional, safetyFactor, maxNotional float64) float64 {
	sized := notional * safetyFactor
	if maxNotional > 0 && sized > maxNotional {
		sized = maxNotional
	}
	return sized
}
