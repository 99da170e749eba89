package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"auxilium-api/internal/model"
	"auxilium-api/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

// writeAPIError renders err in the shared error envelope. Untagged errors become 500.
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unclassified middleware error", "error", err)
		apiErr = apierror.Internal(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}
