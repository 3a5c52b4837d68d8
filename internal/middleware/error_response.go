package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/streamqa/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスのJSON表現。
// 画面側はcodeで分岐し、actionをそのまま利用者に表示する。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func newErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はapiErrをJSONで書き込む。エラー応答はキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(newErrorResponseBody(apiErr)); err != nil {
		slog.Warn("failed to write error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は500を書き込む。原因はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteForbidden は403を書き込む。
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError(message))
}
