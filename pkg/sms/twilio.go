package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sudo-enjoy/matching-app-be/config"
)

// Twilio 表示号码无效/不可达的错误码
var twilioInvalidCodes = map[int]bool{
	21211: true, // Invalid 'To' Phone Number
	21214: true, // 'To' phone number cannot be reached
	21408: true, // Permission to send an SMS has not been enabled for the region
	21610: true, // Attempt to send to unsubscribed recipient
	21614: true, // 'To' number is not a valid mobile number
}

// TwilioNotifier 通过 Twilio REST API 发送短信
type TwilioNotifier struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioNotifier(cfg config.SMSConfig) *TwilioNotifier {
	return &TwilioNotifier{
		accountSID: cfg.TwilioAccountSID,
		authToken:  cfg.TwilioAuthToken,
		from:       cfg.TwilioFrom,
		baseURL:    strings.TrimSuffix(cfg.TwilioBaseURL, "/"),
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send POST /2010-04-01/Accounts/{sid}/Messages.json
func (n *TwilioNotifier) Send(ctx context.Context, phone, message string) error {
	if !ValidPhone(phone) {
		return ErrInvalidDestination
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", n.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, url.PathEscape(n.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(n.accountSID, n.authToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr twilioError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&apiErr)
	if twilioInvalidCodes[apiErr.Code] {
		return fmt.Errorf("%w: twilio code %d", ErrInvalidDestination, apiErr.Code)
	}
	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: twilio status %d", ErrUnavailable, resp.StatusCode)
	}
	return fmt.Errorf("sms: twilio status %d code %d", resp.StatusCode, apiErr.Code)
}

func (n *TwilioNotifier) Provider() string { return config.SMSProviderTwilio }
