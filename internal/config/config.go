package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	WebSocketOrigin string
	InternalToken   string
	NATSURL         string
	LogLevel        string

	MinWager         decimal.Decimal
	MaxWager         decimal.Decimal
	PayoutMultiplier decimal.Decimal
	MinDeposit       decimal.Decimal
	DepositRefMinLen int
	DemoStartBalance decimal.Decimal

	SettleRetryMax     int
	SettleRetryBackoff time.Duration
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	// Empty DB_DSN selects the in-memory stores.
	c.DBDSN = os.Getenv("DB_DSN")
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.NATSURL = strings.TrimSpace(os.Getenv("NATS_URL"))
	c.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	var err error
	if c.MinWager, err = envDecimal("MIN_WAGER", "1"); err != nil {
		return c, err
	}
	if c.MaxWager, err = envDecimal("MAX_WAGER", "10000"); err != nil {
		return c, err
	}
	if c.PayoutMultiplier, err = envDecimal("PAYOUT_MULTIPLIER", "1.85"); err != nil {
		return c, err
	}
	if c.MinDeposit, err = envDecimal("MIN_DEPOSIT", "10"); err != nil {
		return c, err
	}
	if c.DemoStartBalance, err = envDecimal("DEMO_STARTING_BALANCE", "50000"); err != nil {
		return c, err
	}
	refLen := os.Getenv("DEPOSIT_REF_MIN_LEN")
	if refLen == "" {
		c.DepositRefMinLen = 8
	} else {
		n, err := strconv.Atoi(refLen)
		if err != nil || n <= 0 {
			return c, errors.New("invalid DEPOSIT_REF_MIN_LEN")
		}
		c.DepositRefMinLen = n
	}
	retryMax := os.Getenv("SETTLE_RETRY_MAX")
	if retryMax == "" {
		c.SettleRetryMax = 5
	} else {
		n, err := strconv.Atoi(retryMax)
		if err != nil || n <= 0 {
			return c, errors.New("invalid SETTLE_RETRY_MAX")
		}
		c.SettleRetryMax = n
	}
	backoff := os.Getenv("SETTLE_RETRY_BACKOFF")
	if backoff == "" {
		c.SettleRetryBackoff = 500 * time.Millisecond
	} else {
		d, err := time.ParseDuration(backoff)
		if err != nil {
			return c, errors.New("invalid SETTLE_RETRY_BACKOFF")
		}
		c.SettleRetryBackoff = d
	}

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func envDecimal(key, def string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.GreaterThan(decimal.Zero) {
		return decimal.Zero, errors.New("invalid " + key)
	}
	return v, nil
}
