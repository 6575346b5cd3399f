package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultAPIBase = "https://api.weixin.qq.com"

var ErrNoTemplate = errors.New("no template configured for message kind")

// errcodes meaning the access token is invalid or expired
var tokenErrCodes = map[int]bool{40001: true, 40014: true, 42001: true}

type WeChatConfig struct {
	AppID            string
	AppSecret        string
	APIBase          string
	MiniprogramState string
	Templates        map[Kind]string
}

// WeChat sends subscribe messages through the WeChat open API.
type WeChat struct {
	cfg    WeChatConfig
	client *http.Client
	tokens *TokenCache
}

func NewWeChat(cfg WeChatConfig, client *http.Client) *WeChat {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.MiniprogramState == "" {
		cfg.MiniprogramState = "formal"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	w := &WeChat{cfg: cfg, client: client}
	w.tokens = NewTokenCache(w.fetchToken)

	return w
}

type apiError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("wechat errcode %d: %s", e.ErrCode, e.ErrMsg)
}

func (w *WeChat) fetchToken(ctx context.Context) (string, time.Duration, error) {
	const op = "notify.WeChat.fetchToken"

	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", w.cfg.AppID)
	q.Set("secret", w.cfg.AppSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint("/cgi-bin/token")+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	var body struct {
		apiError
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}

	if err := w.do(req, &body); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("%s: %w", op, body.apiError)
	}

	return body.AccessToken, time.Duration(body.ExpiresIn) * time.Second, nil
}

type subscribeValue struct {
	Value string `json:"value"`
}

type subscribeMessage struct {
	ToUser           string                    `json:"touser"`
	TemplateID       string                    `json:"template_id"`
	Page             string                    `json:"page,omitempty"`
	Data             map[string]subscribeValue `json:"data"`
	MiniprogramState string                    `json:"miniprogram_state"`
}

func (w *WeChat) Notify(ctx context.Context, msg Message) error {
	const op = "notify.WeChat.Notify"

	templateID := w.cfg.Templates[msg.Kind]
	if templateID == "" {
		return fmt.Errorf("%s: %s: %w", op, msg.Kind, ErrNoTemplate)
	}

	token, err := w.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data := make(map[string]subscribeValue, len(msg.Fields))
	for k, v := range msg.Fields {
		data[k] = subscribeValue{Value: v}
	}

	payload, err := json.Marshal(subscribeMessage{
		ToUser:           msg.Recipient,
		TemplateID:       templateID,
		Page:             msg.Page,
		Data:             data,
		MiniprogramState: w.cfg.MiniprogramState,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	endpoint := w.endpoint("/cgi-bin/message/subscribe/send") + "?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var body apiError
	if err := w.do(req, &body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if body.ErrCode != 0 {
		if tokenErrCodes[body.ErrCode] {
			w.tokens.Invalidate()
		}

		return fmt.Errorf("%s: %w", op, body)
	}

	return nil
}

func (w *WeChat) endpoint(path string) string {
	return strings.TrimRight(w.cfg.APIBase, "/") + path
}

func (w *WeChat) do(req *http.Request, out any) error {
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
