package fakeapi

import (
	"net/http"
)

// DevHandler exposes the outbox so a local user can read the codes the fake
// API "mailed". Only mounted when explicitly enabled.
type DevHandler struct {
	outbox *Outbox
}

func NewDevHandler(outbox *Outbox) *DevHandler {
	return &DevHandler{outbox: outbox}
}

func (h *DevHandler) Outbox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": h.outbox.Messages(r.URL.Query().Get("email")),
	})
}
