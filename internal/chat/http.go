package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type joinRequest struct {
	Name string `json:"name"`
}

type postRequest struct {
	From uuid.UUID `json:"from"`
	Body string    `json:"body"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Mount registers the room's write endpoints on r:
//
//	POST   /join           {"name"}          -> Participant
//	DELETE /members/{id}                     -> 204
//	POST   /messages       {"from", "body"}  -> Message
func (room *Room) Mount(r chi.Router) {
	r.Post("/join", room.serveJoin)
	r.Delete("/members/{id}", room.serveLeave)
	r.Post("/messages", room.servePost)
}

func (room *Room) serveJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}
	p, err := room.Join(r.Context(), req.Name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (room *Room) serveLeave(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}
	if err := room.Leave(r.Context(), id); err != nil {
		writeJSON(w, statusFor(err), errorResponse{err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (room *Room) servePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}
	msg, err := room.Post(req.From, req.Body)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownParticipant):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
