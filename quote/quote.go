package quote

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"golockbridge/config"
	"golockbridge/types"
)

const bpsDenominator = 10000

// EstimatedCompletion is the worst-case destination wait quoted to callers
const EstimatedCompletion = time.Duration(config.DefaultMaxAttempts) * config.DefaultPollInterval

var bigBps = big.NewInt(bpsDenominator)

func ValidateSchedule(schedule types.FeeSchedule) error {
	names := make(map[string]bool, len(schedule.Components))
	for _, c := range schedule.Components {
		if c.Name == "" {
			return fmt.Errorf("%w: fee component without a name", types.ErrFeeSchedule)
		}
		if names[c.Name] {
			return fmt.Errorf("%w: duplicate fee component %q", types.ErrFeeSchedule, c.Name)
		}
		names[c.Name] = true
	}
	if total := schedule.TotalBps(); total >= bpsDenominator {
		return fmt.Errorf("%w: total rate %d bps is not below %d", types.ErrFeeSchedule, total, bpsDenominator)
	}
	return nil
}

// Quote computes bridge economics for amountIn (source smallest units).
// It is a pure function of its inputs and safe for concurrent use.
func Quote(route types.TokenRoute, schedule types.FeeSchedule, amountIn *big.Int) (*types.BridgeQuote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrInvalidAmount)
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if err := checkPrecision(route, amountIn); err != nil {
		return nil, err
	}

	fees := make([]types.FeeAmount, 0, len(schedule.Components))
	total := new(big.Int)
	for _, c := range schedule.Components {
		// amounts are non-negative so Quo truncation is floor
		fee := new(big.Int).Mul(amountIn, big.NewInt(int64(c.RateBps)))
		fee.Quo(fee, bigBps)
		total.Add(total, fee)
		fees = append(fees, types.FeeAmount{Name: c.Name, RateBps: c.RateBps, Amount: fee})
	}

	net := new(big.Int).Sub(amountIn, total)
	if net.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fees %s consume the whole amount %s", types.ErrFeeSchedule, total, amountIn)
	}

	dest := Rescale(net, route.SourceDecimals, route.DestinationDecimals)
	if dest.Sign() <= 0 {
		return nil, fmt.Errorf("%w: net amount %s is below the destination precision", types.ErrInvalidAmount, net)
	}

	return &types.BridgeQuote{
		Symbol:            route.Symbol,
		AmountIn:          new(big.Int).Set(amountIn),
		NetAmount:         net,
		DestinationAmount: dest,
		Fees:              fees,
		TotalFee:          total,
		TotalFeeBps:       schedule.TotalBps(),
		EstimatedTime:     EstimatedCompletion,
	}, nil
}

// checkPrecision rejects amounts carrying digits the destination ledger cannot hold
func checkPrecision(route types.TokenRoute, amount *big.Int) error {
	if route.SourceDecimals <= route.DestinationDecimals {
		return nil
	}
	unit := pow10(route.SourceDecimals - route.DestinationDecimals)
	if new(big.Int).Rem(amount, unit).Sign() != 0 {
		return fmt.Errorf("%w: %s is not representable with %d destination decimals",
			types.ErrInvalidAmount, FormatAmount(amount, route.SourceDecimals), route.DestinationDecimals)
	}
	return nil
}

// Rescale converts an amount between decimal precisions, flooring when precision drops
func Rescale(amount *big.Int, from, to uint8) *big.Int {
	switch {
	case from == to:
		return new(big.Int).Set(amount)
	case from < to:
		return new(big.Int).Mul(amount, pow10(to-from))
	default:
		return new(big.Int).Quo(amount, pow10(from-to))
	}
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ParseAmount converts a human amount ("12.5") into the route's source smallest unit
func ParseAmount(route types.TokenRoute, s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", types.ErrInvalidAmount, s)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrInvalidAmount)
	}
	scaled := d.Shift(int32(route.SourceDecimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", types.ErrInvalidAmount, s, route.SourceDecimals)
	}
	return scaled.BigInt(), nil
}

func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
