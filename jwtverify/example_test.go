package jwtverify_test

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/authgate/authgate/jwtverify"
)

// A downstream service protects its routes with tokens minted by the
// gateway's GET /api/auth/token.
func ExampleVerifier_Middleware() {
	verifier, err := jwtverify.New(
		"https://auth.example.com/api/auth/jwks",
		"https://auth.example.com",
		jwtverify.Options{RefreshInterval: time.Hour},
	)
	if err != nil {
		log.Fatal(err)
	}
	defer verifier.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /scores", verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := jwtverify.FromContext(r.Context())
		fmt.Fprintf(w, "scores for %s\n", claims.Email)
	})))

	log.Fatal(http.ListenAndServe(":8081", mux))
}
