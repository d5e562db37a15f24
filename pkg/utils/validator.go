package utils

import (
	"fmt"
	"strings"
)

// validator.go - валидация входных данных
//
// Назначение:
// Проверка корректности канонических символов до того как они попадут
// в адаптеры бирж.

// ValidateSymbol проверяет канонический формат символа BASE/USDT.
//
// Требования:
//   - ровно один разделитель "/"
//   - непустая базовая валюта в верхнем регистре
//   - котируемая валюта строго USDT
//
// Возвращает error с описанием проблемы или nil.
func ValidateSymbol(symbol string) error {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid symbol format %q: expected BASE/USDT", symbol)
	}
	base, quote := parts[0], parts[1]
	if base == "" || base != strings.ToUpper(base) {
		return fmt.Errorf("invalid base currency %q in symbol %q", base, symbol)
	}
	if quote != "USDT" {
		return fmt.Errorf("unsupported quote currency %q in symbol %q: only USDT", quote, symbol)
	}
	return nil
}

// BaseCurrency возвращает базовую валюту канонического символа.
// Для некорректного символа возвращает пустую строку.
func BaseCurrency(symbol string) string {
	idx := strings.IndexByte(symbol, '/')
	if idx <= 0 {
		return ""
	}
	return symbol[:idx]
}
