package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
)

// Recoverer turns a handler panic into a 500 and logs the stack.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.WithFields(log.Fields{
				"component": "panic_recovery",
				"panic":     fmt.Sprintf("%v", rec),
				"path":      r.URL.Path,
				"stack":     string(debug.Stack()),
			}).Error("Panic in handler, recovered")
			common.RespondMessage(w, http.StatusInternalServerError, "internal", "something went wrong, try again")
		}()
		next.ServeHTTP(w, r)
	})
}

// RecoverGo is deferred at the top of background goroutines.
func RecoverGo(component string) {
	if rec := recover(); rec != nil {
		log.WithFields(log.Fields{
			"component": component,
			"panic":     fmt.Sprintf("%v", rec),
			"stack":     string(debug.Stack()),
		}).Error("Panic in background task, recovered")
	}
}
