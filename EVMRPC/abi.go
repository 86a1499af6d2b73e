package EVMRPC

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]}
]`

// the bridge escrows the token and emits Locked with the correlation id
const bridgeABIJSON = `[
	{"type":"function","name":"lock","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipient","type":"string"}],
	 "outputs":[{"name":"lockId","type":"bytes32"}]},
	{"type":"function","name":"lockStatus","stateMutability":"view",
	 "inputs":[{"name":"lockId","type":"bytes32"}],
	 "outputs":[{"name":"completed","type":"bool"},{"name":"amount","type":"uint256"},{"name":"timestamp","type":"uint256"}]},
	{"type":"event","name":"Locked","anonymous":false,
	 "inputs":[
		{"name":"lockId","type":"bytes32","indexed":true},
		{"name":"token","type":"address","indexed":true},
		{"name":"sender","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"recipient","type":"string","indexed":false}]}
]`

var (
	ERC20ABI  = mustParseABI(erc20ABIJSON)
	BridgeABI = mustParseABI(bridgeABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
