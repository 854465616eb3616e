// Package handler はREST APIのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethiomarket/marketd/internal/middleware"
	"github.com/ethiomarket/marketd/internal/model"
)

// listResponse はコレクション取得のページング付きレスポンス。
type listResponse struct {
	Count       int `json:"count"`
	Total       int `json:"total"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	Data        any `json:"data"`
}

// newListResponse はページング付きレスポンスを構築する。
func newListResponse(data any, count, total, page, limit int) listResponse {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return listResponse{
		Count:       count,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		Data:        data,
	}
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
// ミドルウェア層と同じライターを使い、フォーマットを一本化する。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidRequestBody はJSONボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case "VALIDATION_ERROR", "INVALID_CATEGORY", "INVALID_REGION", "INVALID_STATUS",
		"OTP_INVALID", "OTP_EXPIRED":
		return http.StatusBadRequest
	case "UNAUTHORIZED", "INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	case "FORBIDDEN", "ACCOUNT_DEACTIVATED":
		return http.StatusForbidden
	case "LISTING_NOT_FOUND", "USER_NOT_FOUND", "MESSAGE_NOT_FOUND", "RECEIVER_NOT_FOUND":
		return http.StatusNotFound
	case "INVALID_STATE_TRANSITION", "DUPLICATE_EMAIL", "DUPLICATE_PHONE":
		return http.StatusConflict
	case "OTP_ATTEMPTS_EXCEEDED":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
