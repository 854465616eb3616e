package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioClient はTwilio Messages APIのクライアント。
type TwilioClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	accountSID string
	authToken  string
	from       string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewTwilioClient はTwilioClientを生成する。
func NewTwilioClient(httpClient *http.Client, logger *slog.Logger, accountSID, authToken, from string) *TwilioClient {
	return &TwilioClient{
		httpClient: httpClient,
		logger:     logger,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultTwilioBaseURL,
	}
}

// Send は指定の電話番号へメッセージを送信する。
func (c *TwilioClient) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("SMS send request failed",
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// Twilioは成功時に201を返す
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		c.logger.Error("SMS gateway returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("to", to),
		)
		return fmt.Errorf("SMS gateway returned status %d", resp.StatusCode)
	}

	return nil
}

// compile-time interface check
var _ Sender = (*TwilioClient)(nil)

// MockSender は送信せずログ出力のみ行うSender実装。
// ローカル開発とSMS認証情報未設定の環境で使用する。
type MockSender struct {
	logger *slog.Logger
}

// NewMockSender はMockSenderを生成する。
func NewMockSender(logger *slog.Logger) *MockSender {
	return &MockSender{logger: logger}
}

// Send はメッセージをログに出力する。常に成功する。
func (m *MockSender) Send(ctx context.Context, to, body string) error {
	m.logger.Info("mock SMS sent",
		slog.String("to", to),
		slog.String("body", body),
	)
	return nil
}

// compile-time interface check
var _ Sender = (*MockSender)(nil)
