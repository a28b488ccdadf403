package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// State is a freshly minted OAuth state parameter. CodeVerifier and
// CodeChallenge are set only when the target provider requires PKCE.
type State struct {
	Value         string
	Nonce         string
	CodeVerifier  string
	CodeChallenge string
}

// VerifyResult is the outcome of checking a state parameter returned by a
// provider redirect. All failure modes surface as IsValid=false.
type VerifyResult struct {
	IsValid      bool
	RedirectTo   string
	CodeVerifier string
	Nonce        string
	ExpiresAt    time.Time
}

// statePayload is the signed JSON carried inside the opaque state string.
// Timestamp is milliseconds since epoch.
type statePayload struct {
	UserID       string `json:"userId"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        string `json:"nonce"`
	RedirectTo   string `json:"redirectTo,omitempty"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
}

// StateSigner mints and verifies signed, time-boxed, user-bound state tokens.
// Tokens are stateless: nothing is stored server-side, the HMAC signature
// binds the token to the user and the minting time.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer using the shared server secret. ttl is the
// validity window of minted tokens.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint builds a signed state token bound to userID. When withPKCE is set, a
// PKCE verifier (32 random bytes, URL-safe base64) is embedded in the payload
// and its S256 challenge is returned for the authorization URL.
func (s *StateSigner) Mint(userID, redirectTo string, withPKCE bool) (*State, error) {
	nonceBytes := make([]byte, 8)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	st := &State{Nonce: nonce}

	if withPKCE {
		verifierBytes := make([]byte, 32)
		if _, err := rand.Read(verifierBytes); err != nil {
			return nil, fmt.Errorf("failed to generate code verifier: %w", err)
		}
		st.CodeVerifier = base64.RawURLEncoding.EncodeToString(verifierBytes)
		challenge := sha256.Sum256([]byte(st.CodeVerifier))
		st.CodeChallenge = base64.RawURLEncoding.EncodeToString(challenge[:])
	}

	payload, err := json.Marshal(statePayload{
		UserID:       userID,
		Timestamp:    s.now().UnixMilli(),
		Nonce:        nonce,
		RedirectTo:   redirectTo,
		CodeVerifier: st.CodeVerifier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize state payload: %w", err)
	}

	signature := s.sign(payload)
	st.Value = base64.StdEncoding.EncodeToString([]byte(string(payload) + "." + signature))

	return st, nil
}

// Verify decodes and checks a state parameter against the expected user.
// It never returns an error: malformed input, a bad signature, a foreign
// user id and an expired timestamp all yield IsValid=false.
func (s *StateSigner) Verify(state, expectedUserID string) VerifyResult {
	decoded, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return VerifyResult{}
	}

	raw := string(decoded)
	lastDot := strings.LastIndex(raw, ".")
	if lastDot == -1 {
		return VerifyResult{}
	}

	payloadStr := raw[:lastDot]
	signature := raw[lastDot+1:]

	expected := s.sign([]byte(payloadStr))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return VerifyResult{}
	}

	var payload statePayload
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return VerifyResult{}
	}

	if payload.UserID != expectedUserID {
		return VerifyResult{}
	}

	mintedAt := time.UnixMilli(payload.Timestamp)
	if s.now().Sub(mintedAt) > s.ttl {
		return VerifyResult{}
	}

	return VerifyResult{
		IsValid:      true,
		RedirectTo:   payload.RedirectTo,
		CodeVerifier: payload.CodeVerifier,
		Nonce:        payload.Nonce,
		ExpiresAt:    mintedAt.Add(s.ttl),
	}
}

func (s *StateSigner) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
