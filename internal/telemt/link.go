package telemt

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"telemt-admin/internal/domain"
)

var (
	ErrNoPublicHost  = errors.New("general.links.public_host is not set")
	ErrNoEnabledMode = errors.New("no usable proxy mode is enabled")
)

// GenerateSecret returns 16 random bytes as 32 lowercase hex characters.
func GenerateSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// BuildLink renders a tg-compatible proxy link. TLS mode wins when it is
// enabled and a fake-TLS domain is configured, then secure, then classic.
func BuildLink(p domain.LinkParams, secret string) (string, error) {
	if p.Host == "" {
		return "", ErrNoPublicHost
	}
	if !secretPattern.MatchString(secret) {
		return "", ErrInvalidSecret
	}

	var clientSecret string
	switch {
	case p.TLS && p.TLSDomain != "":
		clientSecret = "ee" + secret + hex.EncodeToString([]byte(p.TLSDomain))
	case p.Secure:
		clientSecret = "dd" + secret
	case p.Classic:
		clientSecret = secret
	default:
		return "", ErrNoEnabledMode
	}

	port := p.Port
	if port <= 0 {
		port = defaultPublicPort
	}
	return "https://t.me/proxy?server=" + url.QueryEscape(p.Host) +
		"&port=" + strconv.Itoa(port) +
		"&secret=" + clientSecret, nil
}
