package auth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const callerKey = "caller_address"

const messagePrefix = "CreditScore Auth"

// AuthMiddleware authenticates callers by an EIP-191 signature over a nonce
// and timestamp.
type AuthMiddleware struct {
	mu          sync.Mutex
	nonceStore  map[string]time.Time
	nonceWindow time.Duration
	clock       clockwork.Clock
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(clock clockwork.Clock) *AuthMiddleware {
	return &AuthMiddleware{
		nonceStore:  make(map[string]time.Time),
		nonceWindow: 5 * time.Minute,
		clock:       clock,
	}
}

// RequireAuth rejects requests without a valid signature token and stores
// the recovered caller address on the context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
				"code":  "AUTH_HEADER_MISSING",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization format",
				"code":  "INVALID_AUTH_FORMAT",
			})
			return
		}

		address, err := am.verifySignatureToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logrus.WithError(err).Warn("Authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication failed",
				"code":  "AUTH_FAILED",
			})
			return
		}

		SetCaller(c, address)
		c.Next()
	}
}

// SetCaller records the authenticated caller on the request context.
func SetCaller(c *gin.Context, address common.Address) {
	c.Set(callerKey, address)
}

// Caller returns the authenticated caller, if any.
func Caller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return common.Address{}, false
	}
	address, ok := v.(common.Address)
	return address, ok
}

// Message is the text a client signs for the given nonce and timestamp.
func Message(nonce string, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d", messagePrefix, nonce, timestamp)
}

// SignToken produces a bearer token in the format
// "signature:nonce:timestamp:address".
func SignToken(key *ecdsa.PrivateKey, nonce string, at time.Time) (string, error) {
	ts := at.Unix()
	sig, err := crypto.Sign(signHash(Message(nonce, ts)), key)
	if err != nil {
		return "", err
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	return fmt.Sprintf("0x%s:%s:%d:%s", hex.EncodeToString(sig), nonce, ts, address.Hex()), nil
}

// signHash hashes message with the Ethereum signed-message prefix.
func signHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

func (am *AuthMiddleware) verifySignatureToken(token string) (common.Address, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return common.Address{}, fmt.Errorf("invalid token format")
	}

	signature, nonce, timestampStr, address := parts[0], parts[1], parts[2], parts[3]

	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address format")
	}
	if nonce == "" || len(nonce) > 128 {
		return common.Address{}, fmt.Errorf("invalid nonce length")
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid timestamp")
	}

	// 5 minute window, 1 minute of clock skew
	now := am.clock.Now()
	if now.Unix()-timestamp > 300 || timestamp > now.Unix()+60 {
		return common.Address{}, fmt.Errorf("timestamp out of valid range")
	}

	expected := common.HexToAddress(address)
	if err := verifyEthereumSignature(Message(nonce, timestamp), signature, expected); err != nil {
		return common.Address{}, fmt.Errorf("signature verification failed: %w", err)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	for n, usedAt := range am.nonceStore {
		if now.Sub(usedAt) > am.nonceWindow {
			delete(am.nonceStore, n)
		}
	}
	// nonces are per wallet
	key := expected.Hex() + ":" + nonce
	if _, used := am.nonceStore[key]; used {
		return common.Address{}, fmt.Errorf("nonce already used")
	}
	am.nonceStore[key] = now

	return expected, nil
}

func verifyEthereumSignature(message, signature string, expected common.Address) error {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature encoding")
	}
	if len(sigBytes) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length")
	}
	// wallets emit v as 27/28
	if sigBytes[crypto.RecoveryIDOffset] >= 27 {
		sigBytes[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(signHash(message), sigBytes)
	if err != nil {
		return fmt.Errorf("failed to recover public key")
	}

	if crypto.PubkeyToAddress(*pubKey) != expected {
		return fmt.Errorf("signature address mismatch")
	}
	return nil
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// CORS allows the configured origins. An empty list allows none.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
