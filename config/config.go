package config

import (
	"strings"
	"time"

	"golockbridge/types"
)

type Configuration struct {
	// Server config
	Server struct {
		Env        string `yaml:"env" envconfig:"ENV"`
		ListenAddr string `yaml:"listen" envconfig:"LISTEN"`
		UseSSL     bool   `yaml:"ssl" envconfig:"SSL"`
		LogFile    string `yaml:"log_file" envconfig:"LOG_FILE"`
		RedisPort  int    `yaml:"redis_port" envconfig:"REDIS_PORT"`
		RedisHost  string `yaml:"redis_host" envconfig:"REDIS_HOST"`
		// how often failed records are re-derived through the status query service
		ReconcileInterval time.Duration `yaml:"reconcile_interval" envconfig:"RECONCILE_INTERVAL"`
	} `yaml:"server"`
	// source chain
	EVM struct {
		ChainID       int64    `yaml:"chain_id" envconfig:"CHAIN_ID"`
		RPCList       []string `yaml:"rpc_list" envconfig:"RPC_LIST"`
		BridgeAddress string   `yaml:"bridge_address" envconfig:"BRIDGE_ADDRESS"`
		Confirmations uint64   `yaml:"confirmations" envconfig:"CONFIRMATIONS"`
		// important private stuff, only used by the server-side signer
		PublicAddress  string        `yaml:"address" envconfig:"ADDRESS"`
		PrivateKey     string        `yaml:"private_key" envconfig:"PRIVATE_KEY"`
		ReceiptPoll    time.Duration `yaml:"receipt_poll" envconfig:"RECEIPT_POLL"`
		ReceiptTimeout time.Duration `yaml:"receipt_timeout" envconfig:"RECEIPT_TIMEOUT"`
	} `yaml:"EVM"`
	// destination ledger
	Ledger struct {
		URL               string        `yaml:"url" envconfig:"URL"`
		BalanceMethod     string        `yaml:"balance_method" envconfig:"BALANCE_METHOD"`
		HealthMethod      string        `yaml:"health_method" envconfig:"HEALTH_METHOD"`
		Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
		RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"RPS"`
		Burst             int           `yaml:"burst" envconfig:"BURST"`
	} `yaml:"ledger"`
	Monitor struct {
		MaxAttempts   int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
		PollInterval  time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
		RequireAmount bool          `yaml:"require_amount" envconfig:"REQUIRE_AMOUNT"`

		// exact_amount narrows require_amount to an increase equal to the expected mint
		ExactAmount bool `yaml:"exact_amount" envconfig:"EXACT_AMOUNT"`
	} `yaml:"monitor"`
	Fees   types.FeeSchedule  `yaml:"fees" ignored:"true"`
	Routes []types.TokenRoute `yaml:"routes" ignored:"true"`
}

// Destination poll defaults: 60 polls, 3 seconds apart
const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 60
)

// Default is the configuration before config.yml and the environment are applied
func Default() Configuration {
	var cfg Configuration
	cfg.Server.Env = "production"
	cfg.Server.ListenAddr = ":8080"
	cfg.Server.RedisHost = "localhost"
	cfg.Server.RedisPort = 6379
	cfg.Server.ReconcileInterval = time.Minute

	cfg.EVM.Confirmations = 1
	cfg.EVM.ReceiptPoll = 2 * time.Second
	cfg.EVM.ReceiptTimeout = 3 * time.Minute

	cfg.Ledger.BalanceMethod = "ledger_getBalance"
	cfg.Ledger.HealthMethod = "ledger_health"
	cfg.Ledger.Timeout = 10 * time.Second
	cfg.Ledger.RequestsPerSecond = 20
	cfg.Ledger.Burst = 5

	cfg.Monitor.MaxAttempts = DefaultMaxAttempts
	cfg.Monitor.PollInterval = DefaultPollInterval
	cfg.Monitor.RequireAmount = true
	return cfg
}

// Route looks up a token route by symbol, case-insensitive
func (c *Configuration) Route(symbol string) (types.TokenRoute, bool) {
	for _, r := range c.Routes {
		if strings.EqualFold(r.Symbol, symbol) {
			return r, true
		}
	}
	return types.TokenRoute{}, false
}
