package middleware

import "net/http"

// Middleware - обертка над http.Handler
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware к handler. Первый в списке выполняется первым.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
