package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
)

// sign.go - примитивы подписи запросов
//
// Каждая биржа использует свою схему HMAC; здесь собраны общие
// строительные блоки. Готовые подписи никогда не логируются.

// jsonNumber - числовой JSON токен: часть бирж отдаёт идентификаторы
// то числом, то строкой
type jsonNumber = json.Number

// hmacSHA256Hex возвращает hex(HMAC-SHA256(secret, message))
func hmacSHA256Hex(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// hmacSHA256Base64 возвращает base64(HMAC-SHA256(secret, message))
func hmacSHA256Base64(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// hmacSHA512Hex возвращает hex(HMAC-SHA512(secret, message))
func hmacSHA512Hex(secret, message string) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// sha512Hex возвращает hex(SHA512(payload)); используется для
// хеширования тела запроса в схеме подписи Gate
func sha512Hex(payload string) string {
	sum := sha512.Sum512([]byte(payload))
	return hex.EncodeToString(sum[:])
}
