package utils

import (
	"math"
)

// math.go - математические утилиты для арбитражной торговли
//
// Назначение:
// Вспомогательные функции для расчёта ценовых гэпов и нотионалов.
// Все функции являются чистыми (pure functions) без побочных эффектов.

// CalculateGap расчитывает знаковый гэп между ценами двух бирж в процентах.
//
// Формула:
//
//	Гэп (%) = ((priceA - priceB) / priceB) × 100
//
// Знак определяется относительно второй (опорной) биржи:
// положительный гэп означает что A дороже B.
//
// Параметры:
//   - priceA: цена на первой бирже пары
//   - priceB: цена на опорной бирже (всегда второй в паре)
//
// Возвращает:
//   - Гэп в процентах (например, 0.05 означает +0.05%)
//   - Если priceB <= 0, возвращает 0
//
// Примеры:
//   - CalculateGap(0.5200, 0.5197) = +0.0577...
//   - CalculateGap(0.5190, 0.5197) = -0.1347...
func CalculateGap(priceA, priceB float64) float64 {
	if priceB <= 0 {
		return 0
	}
	return (priceA - priceB) / priceB * 100
}

// TopNotional возвращает нотионал верхнего уровня стакана в котируемой валюте.
//
// Формула: price × volume
//
// Возвращает 0 при некорректных входных данных.
func TopNotional(price, volume float64) float64 {
	if price <= 0 || volume <= 0 {
		return 0
	}
	return price * volume
}

// MinOf возвращает минимум из набора значений.
//
// Используется для выбора наименьшего нотионала из четырёх верхних
// уровней двух стаканов.
func MinOf(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Abs возвращает абсолютное значение
func Abs(v float64) float64 {
	return math.Abs(v)
}

// RoundTo округляет значение до n знаков после запятой.
//
// Используется при форматировании dedup-ключей и сумм в уведомлениях.
//
// Примеры:
//   - RoundTo(0.05771, 2) = 0.06
//   - RoundTo(1.004999, 2) = 1.0
func RoundTo(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
