package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/parkpass/internal/utils"
)

// ErrMissingIdentifier is returned when neither a captured user_id nor
// an email/phone is available for an OTP round. No network call is made.
var ErrMissingIdentifier = errors.New("missing identifier: email or phone required")

// OtpService drives the upstream one-time-passcode endpoints.
type OtpService struct {
	backend *Backend
}

// NewOtpService constructs an OtpService.
func NewOtpService(backend *Backend) *OtpService {
	return &OtpService{backend: backend}
}

// SendOtpInput carries the guest identifiers for an OTP dispatch.
type SendOtpInput struct {
	Name  string
	Email string
	Phone string
}

// SendOtpResult is the outcome of an OTP dispatch.
type SendOtpResult struct {
	Sent    bool
	Channel string
	UserID  string
	// Phone is the normalized number the round is bound to.
	Phone string
}

type otpSendResponse struct {
	Sent    bool            `json:"sent"`
	Channel string          `json:"channel"`
	UserID  json.RawMessage `json:"user_id"`
	Data    struct {
		UserID json.RawMessage `json:"user_id"`
	} `json:"data"`
}

// Send dispatches an OTP. Phone is preferred over email: when a phone
// is present the channel is sms, otherwise email. The generic auth
// endpoint is tried first; a 404/NOT_FOUND falls back to the
// booking-scoped endpoint with the guest name attached.
func (s *OtpService) Send(ctx context.Context, in SendOtpInput) (SendOtpResult, error) {
	phone := utils.NormalizePhone(in.Phone)
	if in.Email == "" && phone == "" {
		return SendOtpResult{}, ErrMissingIdentifier
	}

	channel := "email"
	if phone != "" {
		channel = "sms"
	}

	body := map[string]any{"channel": channel}
	if phone != "" {
		body["phone"] = phone
	}
	if in.Email != "" {
		body["email"] = in.Email
	}

	var parsed otpSendResponse
	err := s.backend.DoJSON(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "auth/otp/send",
		Body:   body,
	}, &parsed)
	if err != nil {
		if !IsNotFound(err) {
			return SendOtpResult{}, err
		}

		// Older deployments only expose the booking-scoped sender.
		fallback := map[string]any{"name": in.Name}
		if phone != "" {
			fallback["phone"] = phone
		}
		if in.Email != "" {
			fallback["email"] = in.Email
		}
		parsed = otpSendResponse{}
		if err := s.backend.DoJSON(ctx, RequestOpts{
			Method: http.MethodPost,
			Path:   "bookings/otp/send",
			Body:   fallback,
		}, &parsed); err != nil {
			return SendOtpResult{}, err
		}
	}

	result := SendOtpResult{
		Sent:    true,
		Channel: channel,
		Phone:   phone,
		UserID:  decodeLooseID(parsed.UserID),
	}
	if result.UserID == "" {
		result.UserID = decodeLooseID(parsed.Data.UserID)
	}
	if parsed.Channel != "" {
		result.Channel = parsed.Channel
	}
	return result, nil
}

// VerifyOtpInput carries the identifiers and code for verification.
// UserID, when captured from the send step, takes priority.
type VerifyOtpInput struct {
	UserID string
	Email  string
	Phone  string
	Otp    string
}

// VerifyOtpResult is the outcome of a successful verification: the
// upstream session token and user profile.
type VerifyOtpResult struct {
	Verified  bool            `json:"verified"`
	Token     string          `json:"token"`
	User      json.RawMessage `json:"user"`
	ExpiresAt string          `json:"expires_at"`
}

// Verify exchanges the OTP code for an upstream session. It fails with
// ErrMissingIdentifier, without issuing a network call, when no
// user_id, email or phone is available.
func (s *OtpService) Verify(ctx context.Context, in VerifyOtpInput) (VerifyOtpResult, error) {
	body := map[string]any{"otp": in.Otp}
	switch {
	case in.UserID != "":
		body["user_id"] = in.UserID
	case in.Phone != "":
		body["phone"] = utils.NormalizePhone(in.Phone)
	case in.Email != "":
		body["email"] = in.Email
	default:
		return VerifyOtpResult{}, ErrMissingIdentifier
	}

	var result VerifyOtpResult
	if err := s.backend.DoJSON(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "auth/otp/verify",
		Body:   body,
	}, &result); err != nil {
		return VerifyOtpResult{}, err
	}
	return result, nil
}

// decodeLooseID accepts an identifier serialized as either a JSON
// string or number.
func decodeLooseID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if json.Unmarshal(raw, &asString) == nil {
		return asString
	}
	var asNumber json.Number
	if json.Unmarshal(raw, &asNumber) == nil {
		return asNumber.String()
	}
	return ""
}
