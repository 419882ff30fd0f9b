package healthz

import (
	"net/http"
)

type Handler struct {
	check func() error
}

// New returns a handler that always reports healthy.
func New() *Handler {
	return &Handler{}
}

// NewChecked returns a handler that reports 503 while check fails.
func NewChecked(check func() error) *Handler {
	return &Handler{check: check}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		if err := h.check(); err != nil {
			http.Error(w, "503 Service Unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("200 OK"))
}
