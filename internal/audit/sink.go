// Package audit журналирует гэп-сэмплы в Postgres.
//
// Журнал - вспомогательный сток: запись асинхронная (fire-and-forget),
// отказ базы никогда не влияет на мониторинг и торговлю.
package audit

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/joonhyoung1/crypto-trading-bot/internal/bot"
	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

// Таблица на каждую отслеживаемую пару бирж
const (
	tableMexcBitget = "gap_log_mexc_bitget"
	tableGateBitget = "gap_log_gate_bitget"
)

// queueSize - ёмкость очереди записи. Переполнение сбрасывает
// новые сэмплы: журнал не имеет права тормозить тики.
const queueSize = 256

type entry struct {
	sample   bot.GapSample
	volumeA  float64
	volumeB  float64
	notional float64
}

// Sink - асинхронный журнал гэпов
type Sink struct {
	db    *sql.DB
	queue chan entry
	done  chan struct{}
}

// New открывает подключение и запускает фоновую запись.
// Схема создаётся при старте если отсутствует.
func New(dsn string) (*Sink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := newWithDB(db)
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	go s.run()
	return s, nil
}

// newWithDB создаёт Sink поверх готового подключения (для тестов
// воркер не запускается)
func newWithDB(db *sql.DB) *Sink {
	return &Sink{
		db:    db,
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
}

// ensureSchema создаёт таблицы журнала
func (s *Sink) ensureSchema() error {
	for _, table := range []string{tableMexcBitget, tableGateBitget} {
		query := `
			CREATE TABLE IF NOT EXISTS ` + table + ` (
				id         BIGSERIAL PRIMARY KEY,
				symbol     TEXT NOT NULL,
				price_a    DOUBLE PRECISION NOT NULL,
				price_b    DOUBLE PRECISION NOT NULL,
				gap_pct    DOUBLE PRECISION NOT NULL,
				abs_diff   DOUBLE PRECISION NOT NULL,
				volume_a   DOUBLE PRECISION NOT NULL,
				volume_b   DOUBLE PRECISION NOT NULL,
				min_volume DOUBLE PRECISION NOT NULL,
				ts_kst     TIMESTAMPTZ NOT NULL
			)`
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// tableFor возвращает таблицу для пары бирж ("" если пара не журналируется)
func tableFor(venueA, venueB exchange.Venue) string {
	switch {
	case venueA == exchange.VenueMexc && venueB == exchange.VenueBitget:
		return tableMexcBitget
	case venueA == exchange.VenueGate && venueB == exchange.VenueBitget:
		return tableGateBitget
	default:
		return ""
	}
}

// LogGap ставит сэмпл в очередь записи. Никогда не блокирует:
// при переполнении очереди сэмпл сбрасывается с записью в лог.
func (s *Sink) LogGap(sample bot.GapSample, volumeA, volumeB, notional float64) {
	select {
	case s.queue <- entry{sample: sample, volumeA: volumeA, volumeB: volumeB, notional: notional}:
	default:
		log.Printf("[audit] queue full, dropping sample %s", sample.DedupKey())
	}
}

// run - фоновая запись очереди
func (s *Sink) run() {
	for {
		select {
		case e := <-s.queue:
			if err := s.insert(e); err != nil {
				log.Printf("[audit] insert failed: %v", err)
			}
		case <-s.done:
			// Дописываем остаток очереди перед выходом
			for {
				select {
				case e := <-s.queue:
					if err := s.insert(e); err != nil {
						log.Printf("[audit] insert failed during drain: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}

// insert записывает один сэмпл
func (s *Sink) insert(e entry) error {
	table := tableFor(e.sample.VenueA, e.sample.VenueB)
	if table == "" {
		return nil
	}

	query := `
		INSERT INTO ` + table + ` (symbol, price_a, price_b, gap_pct, abs_diff, volume_a, volume_b, min_volume, ts_kst)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.Exec(
		query,
		e.sample.Symbol,
		e.sample.PriceA,
		e.sample.PriceB,
		e.sample.GapPct,
		e.sample.AbsDiff,
		e.volumeA,
		e.volumeB,
		e.notional,
		e.sample.TsKst,
	)
	return err
}

// Close останавливает воркер, дожидается дозаписи и закрывает базу
func (s *Sink) Close() error {
	close(s.done)
	// Даём воркеру время дописать очередь
	time.Sleep(100 * time.Millisecond)
	return s.db.Close()
}
