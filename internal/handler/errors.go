package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/streamqa/internal/middleware"
	"github.com/hitoshi/streamqa/internal/model"
)

// maxJSONBodySize はJSONリクエストボディの上限（バイト）。
const maxJSONBodySize = 16 << 10

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeQuestionNotFound, model.ErrCodeStreamerNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidQuestion, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// apiErrorWithCode はerrが指定コードのAPIErrorであればそれを返す。そうでなければnil。
func apiErrorWithCode(err error, code string) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == code {
		return apiErr
	}
	return nil
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSONBody はリクエストボディをvにデコードする。
// 空のボディはエラーにせず、vをゼロ値のままにする。
func decodeJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}
