package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/authgate/authgate/internal/model"
)

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Code: code, Message: msg})
}

// requestURL rebuilds the absolute URL of r for logging.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
