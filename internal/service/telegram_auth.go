package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InitDataMaxAge is how old a Mini App init_data may be.
const InitDataMaxAge = time.Hour

var (
	ErrInitDataInvalid = errors.New("invalid init data")
	ErrInitDataExpired = errors.New("init data expired")
)

// webAppSecret derives the Mini App signing key: HMAC_SHA256("WebAppData", botToken).
func webAppSecret(botToken string) []byte {
	h := hmac.New(sha256.New, []byte("WebAppData"))
	h.Write([]byte(botToken))
	return h.Sum(nil)
}

// ValidateTelegramInitData verifies Telegram WebApp init_data HMAC and checks
// that the auth_date is recent to mitigate replay attacks.
func ValidateTelegramInitData(initData, botToken string, now time.Time) (url.Values, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInitDataInvalid
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataInvalid
	}
	values.Del("hash")

	var dataCheck []string
	for k, v := range values {
		dataCheck = append(dataCheck, k+"="+strings.Join(v, ""))
	}
	sort.Strings(dataCheck)
	dataString := strings.Join(dataCheck, "\n")

	h := hmac.New(sha256.New, webAppSecret(botToken))
	h.Write([]byte(dataString))

	provided, err := hex.DecodeString(hash)
	if err != nil || !hmac.Equal(h.Sum(nil), provided) {
		return nil, ErrInitDataInvalid
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	// allow small clock skew
	age := now.Unix() - authDate
	if age > int64(InitDataMaxAge/time.Second) || age < -300 {
		return nil, ErrInitDataExpired
	}

	return values, nil
}
