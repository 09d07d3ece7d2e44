package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// PayPhi vendor response codes.
const (
	PayphiCodeSuccess        = "R1000"
	PayphiCodeAmountMismatch = "P1006"
)

// payphiMaxAttempts bounds the retry ladder. There is no automatic
// retry beyond the third attempt.
const payphiMaxAttempts = 3

// VendorError is a terminal, non-retriable gateway failure. The vendor
// code is surfaced alongside the message for support diagnosis.
type VendorError struct {
	Code    string
	Message string
}

func (e *VendorError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment gateway error: %s", e.Message)
	}
	return fmt.Sprintf("payment gateway error: %s [%s]", e.Message, e.Code)
}

// PayphiService initiates hosted-payment transactions through the
// upstream PayPhi bridge endpoint and applies the bounded retry ladder.
type PayphiService struct {
	backend *Backend
	// retryCountryCode is prefixed to the mobile number on the third
	// ladder step. Single-country assumption carried over as-is.
	retryCountryCode string
}

// NewPayphiService constructs a PayphiService.
func NewPayphiService(backend *Backend, retryCountryCode string) *PayphiService {
	if retryCountryCode == "" {
		retryCountryCode = "91"
	}
	return &PayphiService{backend: backend, retryCountryCode: retryCountryCode}
}

// InitiateInput carries the payment initiation payload.
type InitiateInput struct {
	Email      string
	Mobile     string
	Amount     float64
	Currency   string
	Name       string
	CouponCode string
}

// InitiateResult is a successful initiation: the URL to hand the
// browser to, plus the vendor transaction context.
type InitiateResult struct {
	RedirectURL     string
	TranCtx         string
	ResponseCode    string
	ResponseMessage string
	Attempts        int
}

// Initiate runs the retry ladder:
//  1. full payload with amount and currency;
//  2. on P1006, without amount/currency (gateway computes server-side);
//  3. still P1006, mobile prefixed with the country code.
//
// Attempts are strictly sequential; each decision depends on the prior
// response code. Anything other than success or P1006 is terminal.
func (s *PayphiService) Initiate(ctx context.Context, token string, in InitiateInput) (InitiateResult, error) {
	attempts := []map[string]any{
		s.initiateBody(in, true, false),
		s.initiateBody(in, false, false),
		s.initiateBody(in, false, true),
	}

	var last payphiParsed
	made := 0
	for i, body := range attempts[:payphiMaxAttempts] {
		parsed, err := s.post(ctx, token, body)
		if err != nil {
			return InitiateResult{Attempts: made}, err
		}
		made = i + 1
		last = parsed

		if parsed.code == PayphiCodeSuccess && parsed.redirectURL != "" {
			return InitiateResult{
				RedirectURL:     withTranCtx(parsed.redirectURL, parsed.tranCtx),
				TranCtx:         parsed.tranCtx,
				ResponseCode:    parsed.code,
				ResponseMessage: parsed.message,
				Attempts:        made,
			}, nil
		}
		if parsed.code != PayphiCodeAmountMismatch {
			break
		}
	}

	message := last.message
	if message == "" {
		message = "payment initiation failed"
	}
	return InitiateResult{
		ResponseCode:    last.code,
		ResponseMessage: last.message,
		TranCtx:         last.tranCtx,
		Attempts:        made,
	}, &VendorError{Code: last.code, Message: message}
}

func (s *PayphiService) initiateBody(in InitiateInput, withAmount, prefixMobile bool) map[string]any {
	mobile := in.Mobile
	if prefixMobile {
		mobile = s.retryCountryCode + mobile
	}

	body := map[string]any{
		"email":  in.Email,
		"mobile": mobile,
	}
	if withAmount {
		body["amount"] = strconv.FormatFloat(in.Amount, 'f', 2, 64)
		body["currency"] = in.Currency
	}
	if in.Name != "" {
		body["name"] = in.Name
	}
	if in.CouponCode != "" {
		body["coupon_code"] = in.CouponCode
	}
	return body
}

type payphiParsed struct {
	code        string
	message     string
	tranCtx     string
	redirectURL string
}

func (s *PayphiService) post(ctx context.Context, token string, body map[string]any) (payphiParsed, error) {
	resp, err := s.backend.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "cart/pay/payphi/initiate",
		Body:   body,
		Token:  token,
	})
	if err != nil {
		return payphiParsed{}, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return payphiParsed{}, parseBackendError(resp.Status, resp.Body)
	}
	return parsePayphiResponse(resp.Body), nil
}

// parsePayphiResponse tolerates the two observed response shapes: the
// interesting fields either sit at the top level or under a nested
// "response" object.
func parsePayphiResponse(body []byte) payphiParsed {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return payphiParsed{}
	}

	parsed := payphiFields(envelope)
	if raw, ok := envelope["response"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil {
			inner := payphiFields(nested)
			if parsed.code == "" {
				parsed.code = inner.code
			}
			if parsed.message == "" {
				parsed.message = inner.message
			}
			if parsed.tranCtx == "" {
				parsed.tranCtx = inner.tranCtx
			}
			if parsed.redirectURL == "" {
				parsed.redirectURL = inner.redirectURL
			}
		}
	}
	return parsed
}

func payphiFields(m map[string]json.RawMessage) payphiParsed {
	return payphiParsed{
		code:        firstString(m, "responseCode", "response_code", "respCode"),
		message:     firstString(m, "responseMessage", "response_message", "respDescription", "message"),
		tranCtx:     firstString(m, "tranCtx", "tranctx", "tran_ctx"),
		redirectURL: firstString(m, "redirectUrl", "redirectURI", "redirect_url", "paymentUrl", "payment_url"),
	}
}

func firstString(m map[string]json.RawMessage, candidates ...string) string {
	for _, field := range candidates {
		raw, ok := m[field]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// withTranCtx appends the tranCtx query parameter to the redirect URL
// when the gateway left it off.
func withTranCtx(redirectURL, tranCtx string) string {
	if tranCtx == "" {
		return redirectURL
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return redirectURL
	}
	values := u.Query()
	if values.Get("tranCtx") != "" {
		return redirectURL
	}
	values.Set("tranCtx", tranCtx)
	u.RawQuery = values.Encode()
	return u.String()
}
