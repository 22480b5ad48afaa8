package telegram

import (
	"time"

	"ton_mining/internal/service"
)

// ValidateInitData verifies initData and returns its parsed contents.
func ValidateInitData(initData, botToken string) (*InitData, error) {
	values, err := service.ValidateTelegramInitData(initData, botToken, time.Now())
	if err != nil {
		return nil, err
	}
	return parseValues(values)
}
