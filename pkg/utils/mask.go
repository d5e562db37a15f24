package utils

import "strings"

// mask.go - маскирование секретов в диагностическом выводе
//
// Ни один API ключ, подпись или passphrase не должны попадать в логи
// в открытом виде. Ключи маскируются до первых и последних 4 символов;
// подписи и passphrase не выводятся вовсе.

// MaskSecret маскирует секрет: первые 4 + последние 4 символа.
//
// Секреты короче 12 символов маскируются целиком - иначе видимая часть
// составила бы большую долю секрета.
//
// Примеры:
//   - MaskSecret("mx0vA1b2C3d4E5f6") = "mx0v...E5f6"
//   - MaskSecret("short") = "*****"
//   - MaskSecret("") = ""
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}
