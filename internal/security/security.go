package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
)

// ProfileURLMessage is shown whenever a profile URL fails the gate
const ProfileURLMessage = "Please enter a valid LinkedIn profile URL (e.g., https://www.linkedin.com/in/username)"

var profileURLPattern = regexp.MustCompile(`(?i)linkedin\.com/(in|company)/[\w-]+/?$`)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxInputLength int           `json:"max_input_length"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHSTS     bool          `json:"enable_hsts"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxInputLength: 200,
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware provides the request hardening middleware
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{
		config: config,
	}
}

// ValidateProfileURL applies the gate with this middleware's length limit
func (sm *SecurityMiddleware) ValidateProfileURL(input string) (string, error) {
	return ValidateProfileURL(input, sm.config.MaxInputLength)
}

// ValidateProfileURL checks that input names a LinkedIn profile or company
// page and returns it trimmed. Failures are validation AppErrors whose
// message can be shown to the user. maxLength <= 0 disables the length check.
func ValidateProfileURL(input string, maxLength int) (string, error) {
	input = strings.TrimSpace(input)

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		return "", errors.NewValidationError(
			fmt.Sprintf("Profile URL exceeds maximum length of %d characters", maxLength), "too_long")
	}

	if strings.Contains(input, "\x00") {
		return "", errors.NewValidationError(ProfileURLMessage, "invalid_characters")
	}

	if !utf8.ValidString(input) {
		return "", errors.NewValidationError(ProfileURLMessage, "invalid_utf8")
	}

	if !profileURLPattern.MatchString(input) {
		return "", errors.NewValidationError(ProfileURLMessage, "pattern_mismatch")
	}

	return input, nil
}

// SecurityHeaders adds security headers to responses
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

	if sm.config.EnableHSTS || c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	c.Next()
}

var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// ValidateContentType rejects request bodies the handlers cannot decode
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := strings.ToLower(c.GetHeader("Content-Type"))

	if contentType != "" {
		found := false
		for _, allowed := range allowedContentTypes {
			if strings.Contains(contentType, allowed) {
				found = true
				break
			}
		}

		if !found {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			return
		}
	}

	c.Next()
}

// RequestTimeout bounds the request context. Handlers observe it through
// c.Request.Context().
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}
