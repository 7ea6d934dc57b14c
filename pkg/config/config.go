// Package config loads engine configuration through viper: defaults, an
// optional config file, and EFFECT_-prefixed environment variables, in
// increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "EFFECT"

// Keys used in config files, flags and environment variables.
const (
	KeyDataDir             = "data-dir"
	KeyLibp2pPort          = "libp2p-port"
	KeyAPIHost             = "api-host"
	KeyAPIPort             = "api-port"
	KeyRequireAccessCodes  = "require-access-codes"
	KeyManageInterval      = "manage-interval"
	KeyPayoutRatePerSecond = "payout-rate-per-second"
	KeyPaymentAccount      = "payment-account"
	KeyRecipient           = "recipient"
	KeyAccessCode          = "access-code"
	KeyManagerAddr         = "manager-addr"
)

type Config struct {
	// DataDir holds the bolt database. Empty means in-memory only.
	DataDir    string
	Libp2pPort int
	APIHost    string
	APIPort    int

	// RequireAccessCodes gates first-time worker registration.
	RequireAccessCodes bool
	// ManageInterval is the housekeeping tick.
	ManageInterval time.Duration
	// PayoutRatePerSecond converts accrued worker time into payout amounts.
	PayoutRatePerSecond uint64
	// PaymentAccount is the account minted payments draw from.
	PaymentAccount string

	// Worker-side settings.
	Recipient   string
	AccessCode  string
	ManagerAddr string
}

// New returns a viper instance carrying the engine defaults and environment
// binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyLibp2pPort, 1235)
	v.SetDefault(KeyAPIHost, "0.0.0.0")
	v.SetDefault(KeyAPIPort, 1380)
	v.SetDefault(KeyRequireAccessCodes, false)
	v.SetDefault(KeyManageInterval, 5*time.Second)
	v.SetDefault(KeyPayoutRatePerSecond, uint64(1))
	v.SetDefault(KeyPaymentAccount, "")
	v.SetDefault(KeyRecipient, "")
	v.SetDefault(KeyAccessCode, "")
	v.SetDefault(KeyManagerAddr, "")
	return v
}

// Load materializes the configuration from a prepared viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		DataDir:             v.GetString(KeyDataDir),
		Libp2pPort:          v.GetInt(KeyLibp2pPort),
		APIHost:             v.GetString(KeyAPIHost),
		APIPort:             v.GetInt(KeyAPIPort),
		RequireAccessCodes:  v.GetBool(KeyRequireAccessCodes),
		ManageInterval:      v.GetDuration(KeyManageInterval),
		PayoutRatePerSecond: v.GetUint64(KeyPayoutRatePerSecond),
		PaymentAccount:      v.GetString(KeyPaymentAccount),
		Recipient:           v.GetString(KeyRecipient),
		AccessCode:          v.GetString(KeyAccessCode),
		ManagerAddr:         v.GetString(KeyManagerAddr),
	}
}
