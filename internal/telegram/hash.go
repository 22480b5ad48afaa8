package telegram

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"
)

var ErrNoUser = errors.New("init data has no user")

type WebAppUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LanguageCode string `json:"language_code"`
}

// InitData is the parsed Mini App launch payload.
type InitData struct {
	User       WebAppUser
	StartParam string
	AuthDate   time.Time
}

// ParseInitData parses initData without checking its signature.
func ParseInitData(initData string) (*InitData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	return parseValues(values)
}

func parseValues(values url.Values) (*InitData, error) {
	raw := values.Get("user")
	if raw == "" {
		return nil, ErrNoUser
	}

	var d InitData
	if err := json.Unmarshal([]byte(raw), &d.User); err != nil {
		return nil, err
	}
	if d.User.ID == 0 {
		return nil, ErrNoUser
	}
	d.StartParam = values.Get("start_param")
	if ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64); err == nil {
		d.AuthDate = time.Unix(ts, 0)
	}
	return &d, nil
}
