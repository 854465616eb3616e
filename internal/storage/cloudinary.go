package storage

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// CloudinaryClient はCloudinaryの署名付きアップロードAPIのクライアント。
type CloudinaryClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	cloudName  string
	apiKey     string
	apiSecret  string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewCloudinaryClient はCloudinaryClientを生成する。
func NewCloudinaryClient(httpClient *http.Client, logger *slog.Logger, cloudName, apiKey, apiSecret string) *CloudinaryClient {
	return &CloudinaryClient{
		httpClient: httpClient,
		logger:     logger,
		cloudName:  cloudName,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    defaultBaseURL,
	}
}

// sign はパラメータをキー昇順で連結しAPIシークレットを付けてSHA1署名する。
func (c *CloudinaryClient) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}

	h := sha1.Sum([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(h[:])
}

// Upload は画像データを指定フォルダにアップロードする。
func (c *CloudinaryClient) Upload(ctx context.Context, data []byte, folder string) (*Blob, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signParams := map[string]string{
		"folder":    folder,
		"timestamp": timestamp,
	}

	form := url.Values{}
	form.Set("file", "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(data))
	form.Set("folder", folder)
	form.Set("timestamp", timestamp)
	form.Set("api_key", c.apiKey)
	form.Set("signature", c.sign(signParams))

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("blob upload request failed",
			slog.String("folder", folder),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("blob upload returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("folder", folder),
		)
		return nil, fmt.Errorf("blob upload returned status %d", resp.StatusCode)
	}

	var result struct {
		SecureURL string `json:"secure_url"`
		PublicID  string `json:"public_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}

	return &Blob{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

// Delete は指定PublicIDの画像を削除する。
func (c *CloudinaryClient) Delete(ctx context.Context, publicID string) error {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signParams := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}

	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", c.apiKey)
	form.Set("signature", c.sign(signParams))

	endpoint := fmt.Sprintf("%s/%s/image/destroy", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("blob delete request failed",
			slog.String("public_id", publicID),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("blob delete returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("public_id", publicID),
		)
		return fmt.Errorf("blob delete returned status %d", resp.StatusCode)
	}

	return nil
}

// compile-time interface check
var _ BlobStore = (*CloudinaryClient)(nil)
