package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/middleware"
	"cruzeta-api/internal/model"
	"cruzeta-api/pkg/apierror"
	"cruzeta-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// actorOrAbort returns the authenticated actor. It writes a 401 and returns
// false when the request carries no user.
func actorOrAbort(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Error(w, apierror.Unauthorized(""))
	}
	return actor, ok
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// pathID parses the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, apierror.BadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.InvalidInput(name, "must be an integer")
	}
	return v, nil
}

// queryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date. A bare
// date used as an upper bound covers the whole day.
func queryTime(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.InvalidInput(name, "must be RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func errMissingField(field string) error {
	return apperr.InvalidInput(field, "is required")
}
