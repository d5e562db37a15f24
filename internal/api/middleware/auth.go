package middleware

import (
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// sessionTokenHeader - заголовок с сессионным токеном для
// операций управления торговлей
const sessionTokenHeader = "X-Session-Token"

// SessionAuth проверяет сессионный токен против bcrypt-хэша из
// конфигурации. Применяется только к мутирующим маршрутам
// (запуск и остановка мониторинга).
//
// Пустой hash означает что аутентификация не настроена: запросы
// пропускаются с предупреждением в лог. Сам токен в лог не попадает.
func SessionAuth(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				log.Printf("[auth] SESSION_SECRET not set, %s %s allowed without token", r.Method, r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(sessionTokenHeader)
			if token == "" {
				http.Error(w, "session token required", http.StatusUnauthorized)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				http.Error(w, "invalid session token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
