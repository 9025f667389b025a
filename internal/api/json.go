package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starford/quill/internal/apperr"
)

// maxBodyBytes bounds JSON request bodies. Chapter content is HTML, so this
// is generous.
const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Kind  string `json:"kind,omitempty"`
	Path  string `json:"path,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// kinds maps each error kind to its HTTP status and wire name.
var kinds = []struct {
	err    error
	status int
	name   string
}{
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrAccess, http.StatusForbidden, "access"},
	{apperr.ErrCorruptDocument, http.StatusUnprocessableEntity, "corrupt_document"},
	{apperr.ErrPrecondition, http.StatusConflict, "precondition"},
	{apperr.ErrConflict, http.StatusConflict, "conflict"},
	{apperr.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{apperr.ErrUnsafeDeletion, http.StatusBadRequest, "unsafe_deletion"},
}

// writeError maps a service error to a JSON error response. Unknown errors
// are logged and reported as 500 without details.
func writeError(w http.ResponseWriter, op string, err error) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			writeJSON(w, k.status, errResponse{Error: err.Error(), Kind: k.name, Path: apperr.PathOf(err)})
			return
		}
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
