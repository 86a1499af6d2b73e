package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"golockbridge/types"
)

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// httpStatus maps an error kind to the response code
func httpStatus(err error) int {
	switch types.KindOf(err) {
	case types.KindInvalidAmount, types.KindFeeSchedule, types.KindInvalidRequest, types.KindUnknownRoute:
		return http.StatusBadRequest
	case types.KindLockNotFound:
		return http.StatusNotFound
	case types.KindDestinationUnavailable:
		return http.StatusServiceUnavailable
	case types.KindCancelled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handlers) responseError(w http.ResponseWriter, r *http.Request, err error, field string) {
	code := httpStatus(err)
	kind := types.KindOf(err)
	if code >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.Logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	responseJSON(w, &APIResponse{
		Status:  "error",
		Kind:    string(kind),
		Message: err.Error(),
		Field:   field,
	}, code)
}

func readJSON(r *http.Request, w http.ResponseWriter, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.Join(types.ErrInvalidRequest, errors.New("request body too large"))
		}
		return errors.Join(types.ErrInvalidRequest, err)
	}
	return nil
}
