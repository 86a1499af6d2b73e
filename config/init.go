package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"

	"golockbridge/types"
)

func readFile(path string, cfg *Configuration) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		// environment-only deployments have no config file
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("cannot decode %s: %w", path, err)
	}
	return nil
}

func readEnv(cfg *Configuration) error {
	return envconfig.Process("", cfg)
}

// Load reads defaults, then the yaml file, then the environment on top.
func Load(path string) (*Configuration, error) {
	cfg := Default()
	if err := readFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := readEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validAddress(addr string) bool {
	return ethav.Validate(common.HexToAddress(addr).Hex()) == nil && common.IsHexAddress(addr)
}

func (c *Configuration) Validate() error {
	var problems []string

	if len(c.EVM.RPCList) == 0 {
		problems = append(problems, "EVM.rpc_list is empty")
	}
	if !validAddress(c.EVM.BridgeAddress) {
		problems = append(problems, fmt.Sprintf("EVM.bridge_address %q is not a valid address", c.EVM.BridgeAddress))
	}
	if c.EVM.ReceiptPoll <= 0 || c.EVM.ReceiptTimeout <= 0 {
		problems = append(problems, "EVM receipt poll and timeout must be positive")
	}
	if c.Ledger.URL == "" {
		problems = append(problems, "ledger.url is empty")
	}
	if c.Monitor.MaxAttempts <= 0 || c.Monitor.PollInterval <= 0 {
		problems = append(problems, "monitor max_attempts and poll_interval must be positive")
	}
	if c.Fees.TotalBps() >= 10000 {
		problems = append(problems, fmt.Sprintf("fees total %d bps must be below 10000", c.Fees.TotalBps()))
	}

	seen := make(map[string]bool, len(c.Routes))
	for _, r := range c.Routes {
		key := strings.ToUpper(r.Symbol)
		if r.Symbol == "" {
			problems = append(problems, "route with empty symbol")
			continue
		}
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate route %s", r.Symbol))
		}
		seen[key] = true
		if !validAddress(r.SourceToken) {
			problems = append(problems, fmt.Sprintf("route %s: source_token %q is not a valid address", r.Symbol, r.SourceToken))
		}
		if r.DestinationAsset == "" {
			problems = append(problems, fmt.Sprintf("route %s: destination_asset is empty", r.Symbol))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}
