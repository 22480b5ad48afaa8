package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrSessionActive    = errors.New("mining session already active")
	ErrNoActiveSession  = errors.New("no active mining session")
	ErrSessionNotReady  = errors.New("mining session still running")
	ErrInvalidWallet    = errors.New("invalid wallet address")
	ErrWalletNotLinked  = errors.New("wallet not linked")
	ErrUpgradeNotStored = errors.New("payment completed but upgrade was not applied")

	ErrPurchaseInProgress = errors.New("another purchase is in progress")
)

// ErrReferral groups every rejected referral registration.
var ErrReferral = errors.New("referral rejected")

var (
	ErrAlreadyReferred = fmt.Errorf("%w: user already has a referrer", ErrReferral)
	ErrUnknownCode     = fmt.Errorf("%w: unknown referral code", ErrReferral)
	ErrSelfReferral    = fmt.Errorf("%w: cannot use own referral code", ErrReferral)
)
