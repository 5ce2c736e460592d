package logger

import (
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey keys the per-request identifier on a context.
type RequestIDKey struct{}

// New builds the service logger. Production gets JSON output with ISO 8601
// timestamps; every other environment gets a colorized console encoder.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return log, nil
}

// Only two personal identifiers ever reach log fields in this service: the
// client IP in the access log and the account email in notification dispatch.
// Both are masked before logging.

// MaskEmail keeps at most the first three characters of the local part and
// the full domain: john.doe@example.com becomes joh***@example.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, found := strings.Cut(email, "@")
	if !found {
		return "***"
	}

	visible := 3
	if len(local) < visible {
		visible = len(local)
	}

	return local[:visible] + "***@" + domain
}

// MaskIP hides the host portion of an address: the last two octets of an
// IPv4 address and everything past the first four groups of an IPv6 address.
// Unparseable input is masked entirely.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "***"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.*.*", v4[0], v4[1])
	}

	v6 := parsed.To16()
	groups := make([]string, 4)
	for i := range groups {
		groups[i] = fmt.Sprintf("%04x", uint16(v6[2*i])<<8|uint16(v6[2*i+1]))
	}

	return strings.Join(groups, ":") + ":*:*:*:*"
}
