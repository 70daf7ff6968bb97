package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultResendTimeout = 30 * time.Second
	resendSendPath       = "/emails"
)

// retryableHTTPStatuses are the 4xx codes worth retrying; every 5xx is retryable.
var retryableHTTPStatuses = map[int]bool{
	http.StatusRequestTimeout:  true,
	http.StatusConflict:        true,
	http.StatusTooEarly:        true,
	http.StatusTooManyRequests: true,
}

type resendAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type resendSendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html,omitempty"`
	Text        string             `json:"text,omitempty"`
	ReplyTo     string             `json:"reply_to,omitempty"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendSendResponse struct {
	ID string `json:"id"`
}

type resendErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	Retryable  *bool  `json:"retryable,omitempty"`
}

// ResendProvider sends email through the Resend HTTP API.
type ResendProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	from     string
}

func NewResendProvider(baseURL string, apiKey string, from string) (*ResendProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultResendTimeout)
	client.SetRetryCount(0)

	return NewResendProviderWithClient(baseURL, apiKey, from, client)
}

func NewResendProviderWithClient(baseURL string, apiKey string, from string, client *resty.Client) (*ResendProvider, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("resend base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid resend base url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultResendTimeout)
	}
	client.SetRetryCount(0)

	return &ResendProvider{
		client:   client,
		endpoint: trimmedBase + resendSendPath,
		apiKey:   strings.TrimSpace(apiKey),
		from:     strings.TrimSpace(from),
	}, nil
}

func (p *ResendProvider) Name() ProviderName { return ProviderResend }

func (p *ResendProvider) Send(ctx context.Context, msg Message) (*Result, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("resend provider is not initialized")
	}
	msg = msg.withDefaultFrom(p.from)

	reqBody := resendSendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}
	for _, a := range msg.Attachments {
		reqBody.Attachments = append(reqBody.Attachments, resendAttachment{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	var sent resendSendResponse
	var apiErr resendErrorBody
	response, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&sent).
		SetError(&apiErr).
		Post(p.endpoint)
	if err != nil {
		return nil, classifyResendRequestError(ctx, err)
	}
	if response == nil {
		return nil, &DeliveryError{
			Kind:     KindHTTPTransient,
			Provider: ProviderResend,
			Message:  "resend returned empty response",
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Result{
			Provider:  ProviderResend,
			Accepted:  append([]string(nil), msg.To...),
			MessageID: sent.ID,
		}, nil
	}

	return nil, classifyResendStatus(statusCode, apiErr, strings.TrimSpace(response.String()))
}

func classifyResendRequestError(ctx context.Context, err error) *DeliveryError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutError(ProviderResend, 0, TimeoutResendAbort, err)
	}
	if errors.Is(err, context.Canceled) {
		return &DeliveryError{
			Kind:     KindHTTPTerminal,
			Provider: ProviderResend,
			Message:  "resend request canceled",
			Cause:    err,
		}
	}

	// Network level failures are retried.
	return &DeliveryError{
		Kind:     KindHTTPTransient,
		Provider: ProviderResend,
		Message:  "resend request failed",
		Cause:    err,
	}
}

func classifyResendStatus(statusCode int, apiErr resendErrorBody, rawBody string) *DeliveryError {
	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = rawBody
	}

	var retryable bool
	switch {
	case apiErr.Retryable != nil:
		retryable = *apiErr.Retryable
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		retryable = true
	case retryableHTTPStatuses[statusCode]:
		retryable = true
	default:
		retryable = isTimeoutMessage(message)
	}

	kind := KindHTTPTerminal
	if retryable {
		kind = KindHTTPTransient
	}

	return &DeliveryError{
		Kind:       kind,
		Provider:   ProviderResend,
		StatusCode: statusCode,
		Code:       apiErr.Name,
		Message:    resendErrorMessage(statusCode, message),
	}
}

func resendErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("resend returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func isTimeoutMessage(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "timeout") || strings.Contains(lowered, "timed out")
}
