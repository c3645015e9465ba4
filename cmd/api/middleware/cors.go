package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/cors"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Cors allows the given origins. With none configured it falls back to the
// comma separated CORS_ALLOWED_ORIGIN variable, then to any origin.
func Cors(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = strings.Split(getEnv("CORS_ALLOWED_ORIGIN", "*"), ",")
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           3600,
	})
}
