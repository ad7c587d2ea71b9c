package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var ErrInvalidState = errors.New("invalid correlation state")

// CorrelationState is the ephemeral per-attempt state that must survive
// exactly one browser round-trip to the hosted payment page and back. The
// returning request is matched to the order that initiated it through this
// state; cleared on consumption or cancellation.
type CorrelationState struct {
	CheckoutID     string `json:"checkout_id,omitempty"`
	OrderNo        string `json:"order_no,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
}

func (s CorrelationState) IsZero() bool {
	return s == CorrelationState{}
}

// StateCodec persists CorrelationState in an HMAC-signed cookie.
type StateCodec struct {
	Secret     []byte
	CookieName string
	Secure     bool
}

func NewStateCodec(secret []byte, name string, secure bool) *StateCodec {
	return &StateCodec{Secret: secret, CookieName: name, Secure: secure}
}

// value format: base64url(json).base64url(hmac)
func (c *StateCodec) Encode(st CorrelationState) (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	return payload + "." + sign(c.Secret, payload), nil
}

func (c *StateCodec) Decode(v string) (CorrelationState, error) {
	parts := strings.Split(v, ".")
	if len(parts) != 2 || parts[0] == "" {
		return CorrelationState{}, ErrInvalidState
	}
	if !verify(c.Secret, parts[0], parts[1]) {
		return CorrelationState{}, ErrInvalidState
	}
	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return CorrelationState{}, ErrInvalidState
	}
	var st CorrelationState
	if err := json.Unmarshal(data, &st); err != nil {
		return CorrelationState{}, ErrInvalidState
	}
	return st, nil
}

func (c *StateCodec) Get(ctx *gin.Context) (CorrelationState, bool) {
	v, err := ctx.Cookie(c.CookieName)
	if err != nil || v == "" {
		return CorrelationState{}, false
	}
	st, err := c.Decode(v)
	if err != nil {
		c.Clear(ctx)
		return CorrelationState{}, false
	}
	return st, true
}

func (c *StateCodec) Set(ctx *gin.Context, st CorrelationState) {
	val, err := c.Encode(st)
	if err != nil {
		return
	}
	maxAge := int((30 * time.Minute).Seconds())
	// Lax so the provider's return redirect still carries the cookie
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.CookieName, val, maxAge, "/", "", c.Secure, true)
}

func (c *StateCodec) Clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(c.CookieName, "", -1, "/", "", c.Secure, true)
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func verify(secret []byte, payload, sig string) bool {
	return hmac.Equal([]byte(sign(secret, payload)), []byte(sig))
}
