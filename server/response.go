package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"astroarena/session"
	"astroarena/store"
)

// APIError 带 HTTP 状态码的错误
type APIError interface {
	Error() string
	StatusCode() int
}

type BadRequestError struct {
	Msg string
}

func (e BadRequestError) Error() string { return e.Msg }
func (BadRequestError) StatusCode() int { return http.StatusBadRequest }

type statusError struct {
	err    error
	status int
}

func (e statusError) Error() string   { return e.err.Error() }
func (e statusError) StatusCode() int { return e.status }
func (e statusError) Unwrap() error   { return e.err }

// apiErrorOf 把包内哨兵错误映射成 APIError
func apiErrorOf(err error) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionFull),
		errors.Is(err, session.ErrAlreadyJoined), errors.Is(err, session.ErrNotInSession):
		return statusError{err: err, status: session.StatusCode(err)}
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInvalid), errors.Is(err, store.ErrUnavailable):
		return statusError{err: err, status: store.StatusCode(err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HandleSuccess {success:true, <key>: data}
func HandleSuccess(w http.ResponseWriter, status int, key string, data any) {
	body := map[string]any{"success": true}
	if key != "" {
		body[key] = data
	}
	writeJSON(w, status, body)
}

// HandleError checks the error type and sends an appropriate response
func HandleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Internal Server Error"
	if apiErr := apiErrorOf(err); apiErr != nil {
		status = apiErr.StatusCode()
		msg = apiErr.Error()
	} else {
		Log.Errorf("internal error: %v", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
