package editproxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazyhaar/doodle/dataurl"
	"github.com/hazyhaar/doodle/kit"
	"github.com/hazyhaar/doodle/shield"
)

// Handler returns the HTTP handler for one variant.
//
//	200 {editedImage, responseText[, savedFilePath]}
//	400 {error} on missing fields, a non data URL image or an unreadable body
//	413 {error} when the body exceeds the server limit
//	500 {error[, details]} on model or decoding failure
func (s *Service) Handler(v Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), shield.GetTraceID(r.Context()))

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		res, err := s.Edit(ctx, v, &req)
		if err != nil {
			code := statusFor(err)
			if code < http.StatusInternalServerError {
				writeError(w, code, clientMessage(err))
				return
			}
			body := map[string]string{"error": v.FailureMessage}
			if v.ErrorDetails {
				body["details"] = err.Error()
			}
			writeJSON(w, code, body)
			return
		}

		if v.PersistLocally {
			writeJSON(w, http.StatusOK, persistedResponse{Response: res.Response, SavedFilePath: res.SavedFilePath})
			return
		}
		writeJSON(w, http.StatusOK, res.Response)
	}
}

// clientMessage strips the package prefix from wrapped 400 errors.
func clientMessage(err error) string {
	for _, target := range []error{ErrMissingCommand, ErrMissingImage, dataurl.ErrInvalid} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
