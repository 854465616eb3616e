// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, message, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeListingNotFound        = "LISTING_NOT_FOUND"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeMessageNotFound        = "MESSAGE_NOT_FOUND"
	ErrCodeReceiverNotFound       = "RECEIVER_NOT_FOUND"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeAccountDeactivated     = "ACCOUNT_DEACTIVATED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrCodeDuplicateEmail         = "DUPLICATE_EMAIL"
	ErrCodeDuplicatePhone         = "DUPLICATE_PHONE"
	ErrCodeInvalidCategory        = "INVALID_CATEGORY"
	ErrCodeInvalidRegion          = "INVALID_REGION"
	ErrCodeInvalidStatus          = "INVALID_STATUS"
	ErrCodeOTPInvalid             = "OTP_INVALID"
	ErrCodeOTPExpired             = "OTP_EXPIRED"
	ErrCodeOTPAttemptsExceeded    = "OTP_ATTEMPTS_EXCEEDED"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewListingNotFoundError は出品未検出エラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された出品が見つかりません: %s", listingID),
		Category: "listing",
		Action:   "出品IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewMessageNotFoundError はメッセージが見つからない場合のエラーを生成する。
func NewMessageNotFoundError(messageID string) *APIError {
	return &APIError{
		Code:     ErrCodeMessageNotFound,
		Message:  fmt.Sprintf("指定されたメッセージが見つかりません: %s", messageID),
		Category: "message",
		Action:   "メッセージIDを確認してください。",
	}
}

// NewReceiverNotFoundError は宛先ユーザーが見つからない場合のエラーを生成する。
func NewReceiverNotFoundError(receiverID string) *APIError {
	return &APIError{
		Code:     ErrCodeReceiverNotFound,
		Message:  fmt.Sprintf("宛先ユーザーが見つかりません: %s", receiverID),
		Category: "message",
		Action:   "宛先ユーザーIDを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// 存在しないメールアドレスとパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountDeactivatedError は無効化済みアカウントでのログイン試行エラーを生成する。
func NewAccountDeactivatedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDeactivated,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "サポートにお問い合わせください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "自分のリソースに対してのみ操作できます。",
	}
}

// NewInvalidStateTransitionError は不正な状態遷移エラーを生成する。
func NewInvalidStateTransitionError(from, to ListingStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStateTransition,
		Message:  fmt.Sprintf("ステータスを %s から %s に変更することはできません。", from, to),
		Category: "listing",
		Action:   "出品の現在のステータスを確認してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewDuplicatePhoneError は電話番号重複エラーを生成する。
func NewDuplicatePhoneError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePhone,
		Message:  "この電話番号は既に登録されています。",
		Category: "validation",
		Action:   "別の電話番号を使用してください。",
	}
}

// NewInvalidCategoryError は無効なカテゴリエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "定義済みのカテゴリから選択してください。",
	}
}

// NewInvalidRegionError は無効な地域エラーを生成する。
func NewInvalidRegionError(region string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRegion,
		Message:  fmt.Sprintf("無効な地域です: %s", region),
		Category: "validation",
		Action:   "定義済みの地域から選択してください。",
	}
}

// NewInvalidStatusError は無効なステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "定義済みのステータスから選択してください。",
	}
}

// NewOTPInvalidError は認証コード不一致エラーを生成する。
func NewOTPInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPInvalid,
		Message:  "認証コードが正しくありません。",
		Category: "auth",
		Action:   "送信された6桁のコードを確認して再度入力してください。",
	}
}

// NewOTPExpiredError は認証コード期限切れエラーを生成する。
func NewOTPExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPExpired,
		Message:  "認証コードの有効期限が切れています。",
		Category: "auth",
		Action:   "認証コードを再送信してください。",
	}
}

// NewOTPAttemptsExceededError は認証コード試行回数超過エラーを生成する。
func NewOTPAttemptsExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeOTPAttemptsExceeded,
		Message:  "認証コードの試行回数が上限に達しました。",
		Category: "auth",
		Action:   "認証コードを再送信してから再度お試しください。",
	}
}
