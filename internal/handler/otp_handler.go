package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// OTPServiceInterface は電話番号確認ハンドラーが必要とするサービスインターフェース。
type OTPServiceInterface interface {
	Send(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) error
}

// OTPHandler はSMS確認コードのHTTPハンドラー。
type OTPHandler struct {
	service OTPServiceInterface
}

// NewOTPHandler はOTPHandlerを生成する。
func NewOTPHandler(service OTPServiceInterface) *OTPHandler {
	return &OTPHandler{service: service}
}

// sendOTPRequest は確認コード送信リクエストのボディ。
type sendOTPRequest struct {
	Phone string `json:"phone"`
}

// verifyOTPRequest は確認コード検証リクエストのボディ。
type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// Send は確認コードをSMSで送信する。
// POST /api/otp/send
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.Send(r.Context(), req.Phone); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Verify は確認コードを検証する。
// POST /api/otp/verify
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.Verify(r.Context(), req.Phone, req.Code); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "verified"})
}
