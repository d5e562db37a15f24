package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Вся временная отчётность системы (уведомления, HTTP ответы, гэп-сэмплы)
// ведётся в корейском времени (Asia/Seoul, KST, UTC+9).

// kst - часовой пояс Asia/Seoul.
// KST не имеет переходов на летнее время, поэтому FixedZone безопасен
// как fallback если tzdata недоступна в контейнере.
var kst = loadKST()

func loadKST() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// KST возвращает часовой пояс Asia/Seoul
func KST() *time.Location {
	return kst
}

// NowKST возвращает текущее корейское время
func NowKST() time.Time {
	return time.Now().In(kst)
}

// ToKST переводит время в корейский часовой пояс
func ToKST(t time.Time) time.Time {
	return t.In(kst)
}

// FormatKST форматирует время для уведомлений: "2006-01-02 15:04:05"
func FormatKST(t time.Time) string {
	return t.In(kst).Format("2006-01-02 15:04:05")
}

// FormatClockKST форматирует только время суток: "15:04:05"
func FormatClockKST(t time.Time) string {
	return t.In(kst).Format("15:04:05")
}

// UnixMillis возвращает время в миллисекундах с эпохи
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
