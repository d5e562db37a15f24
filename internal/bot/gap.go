package bot

import (
	"fmt"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
	"github.com/joonhyoung1/crypto-trading-bot/pkg/utils"
)

// gap.go - модель ценового гэпа между парой бирж

// VenuePair - упорядоченная пара бирж. Знак гэпа считается
// относительно второй (опорной) биржи B.
type VenuePair struct {
	A exchange.Venue `json:"a"`
	B exchange.Venue `json:"b"`
}

func (p VenuePair) String() string {
	return string(p.A) + "-" + string(p.B)
}

// DefaultPairs - отслеживаемые пары: mexc-bitget и gate-bitget.
// Bitget всегда опорная биржа.
var DefaultPairs = []VenuePair{
	{A: exchange.VenueMexc, B: exchange.VenueBitget},
	{A: exchange.VenueGate, B: exchange.VenueBitget},
}

// GapSample - один замер гэпа по (символ, пара бирж)
type GapSample struct {
	Symbol  string         `json:"symbol"`
	VenueA  exchange.Venue `json:"venue_a"`
	VenueB  exchange.Venue `json:"venue_b"`
	PriceA  float64        `json:"price_a"`
	PriceB  float64        `json:"price_b"`
	GapPct  float64        `json:"gap_pct"`
	AbsDiff float64        `json:"abs_diff"`
	TsKst   time.Time      `json:"ts_kst"`
}

// NewGapSample строит замер гэпа из двух последних цен
func NewGapSample(symbol string, pair VenuePair, priceA, priceB float64) GapSample {
	return GapSample{
		Symbol:  symbol,
		VenueA:  pair.A,
		VenueB:  pair.B,
		PriceA:  priceA,
		PriceB:  priceB,
		GapPct:  utils.CalculateGap(priceA, priceB),
		AbsDiff: utils.Abs(priceA - priceB),
		TsKst:   utils.NowKST(),
	}
}

// DedupKey - ключ подавления повторных алертов.
// Гэп округляется до двух знаков: "XRP/USDT-0.06".
func (s GapSample) DedupKey() string {
	return fmt.Sprintf("%s-%.2f", s.Symbol, s.GapPct)
}

// Direction - направление входа, порождённое гэпом
type Direction string

const (
	// DirectionLongGap: гэп >= entry_long, A переоценена.
	// Вход: sell на A, buy на B.
	DirectionLongGap Direction = "long_gap"

	// DirectionShortGap: гэп <= entry_short, A недооценена.
	// Вход: buy на A, sell на B.
	DirectionShortGap Direction = "short_gap"
)

// TradeSignal - сигнал исполнителю, порождённый пересечением порога
type TradeSignal struct {
	Sample    GapSample
	Direction Direction
	Notional  float64 // размер в USDT до применения safety factor
}
