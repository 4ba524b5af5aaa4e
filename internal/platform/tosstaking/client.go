// Package tosstaking reads TONStarter staking state from Ethereum using
// go-ethereum's ethclient and ABI codec. It performs no retries; callers own
// the retry policy.
package tosstaking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// ContractCaller is the subset of ethclient.Client used for eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config holds the contract addresses and per-call timeout.
type Config struct {
	StakingContract   string
	ClaimableContract string
	// CallTimeout bounds each eth_call. Zero leaves the caller's deadline alone.
	CallTimeout time.Duration
}

// Client implements domain.ChainReader. It is stateless between calls and
// safe for concurrent use.
type Client struct {
	caller       ContractCaller
	staking      common.Address
	claimable    common.Address
	stakingABI   abi.ABI
	claimableABI abi.ABI
	callTimeout  time.Duration
	closeFn      func()
}

// Dial connects to an Ethereum JSON-RPC endpoint and returns a Client bound
// to the configured contracts.
func Dial(ctx context.Context, rpcURL string, cfg Config) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("tosstaking: dial rpc: %w", err)
	}
	c, err := NewClient(ec, cfg)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closeFn = ec.Close
	return c, nil
}

// NewClient builds a Client on top of an existing ContractCaller.
func NewClient(caller ContractCaller, cfg Config) (*Client, error) {
	stakingAddr := cfg.StakingContract
	if stakingAddr == "" {
		stakingAddr = DefaultStakingContract
	}
	claimableAddr := cfg.ClaimableContract
	if claimableAddr == "" {
		claimableAddr = DefaultClaimableContract
	}
	if !common.IsHexAddress(stakingAddr) {
		return nil, fmt.Errorf("tosstaking: staking contract %q: %w", stakingAddr, domain.ErrInvalidAddress)
	}
	if !common.IsHexAddress(claimableAddr) {
		return nil, fmt.Errorf("tosstaking: claimable contract %q: %w", claimableAddr, domain.ErrInvalidAddress)
	}

	stakingABI, err := abi.JSON(strings.NewReader(stakingABIJSON))
	if err != nil {
		return nil, fmt.Errorf("tosstaking: parse staking abi: %w", err)
	}
	claimableABI, err := abi.JSON(strings.NewReader(claimableABIJSON))
	if err != nil {
		return nil, fmt.Errorf("tosstaking: parse claimable abi: %w", err)
	}

	return &Client{
		caller:       caller,
		staking:      common.HexToAddress(stakingAddr),
		claimable:    common.HexToAddress(claimableAddr),
		stakingABI:   stakingABI,
		claimableABI: claimableABI,
		callTimeout:  cfg.CallTimeout,
	}, nil
}

// Close releases the underlying RPC connection when the Client owns it.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// RunwayBalance reads runwayTos(), the reward pool balance.
func (c *Client) RunwayBalance(ctx context.Context) (decimal.Decimal, error) {
	return c.readAmount(ctx, c.staking, c.stakingABI, methodRunwayTos, "")
}

// TotalStakedSupply reads totalLtos(), the staked-equivalent supply.
func (c *Client) TotalStakedSupply(ctx context.Context) (decimal.Decimal, error) {
	return c.readAmount(ctx, c.staking, c.stakingABI, methodTotalLtos, "")
}

// PositionIndices reads stakingOf(address). The first entry is the sentinel.
func (c *Client) PositionIndices(ctx context.Context, address string) ([]uint64, error) {
	if !common.IsHexAddress(address) {
		return nil, &domain.ChainQueryError{Query: methodStakingOf, Arg: address, Err: domain.ErrInvalidAddress}
	}
	addr := common.HexToAddress(address)

	out, err := c.call(ctx, c.staking, c.stakingABI, methodStakingOf, address, addr)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, &domain.ChainQueryError{
			Query: methodStakingOf,
			Arg:   address,
			Err:   fmt.Errorf("unexpected return type %T", out[0]),
		}
	}

	indices := make([]uint64, len(raw))
	for i, v := range raw {
		if v == nil || !v.IsUint64() {
			return nil, &domain.ChainQueryError{
				Query: methodStakingOf,
				Arg:   address,
				Err:   fmt.Errorf("position index %v out of range", v),
			}
		}
		indices[i] = v.Uint64()
	}
	return indices, nil
}

// PositionAmount reads stakedOf(index).
func (c *Client) PositionAmount(ctx context.Context, index uint64) (decimal.Decimal, error) {
	arg := strconv.FormatUint(index, 10)
	return c.readAmount(ctx, c.staking, c.stakingABI, methodStakedOf, arg, new(big.Int).SetUint64(index))
}

// ClaimableReward reads claimableEther(totalStaked) and returns the ETH amount.
func (c *Client) ClaimableReward(ctx context.Context, totalStaked decimal.Decimal) (decimal.Decimal, error) {
	arg := totalStaked.String()
	raw, err := ToBaseUnits(totalStaked)
	if err != nil {
		return decimal.Zero, &domain.ChainQueryError{Query: methodClaimableEther, Arg: arg, Err: err}
	}
	return c.readAmount(ctx, c.claimable, c.claimableABI, methodClaimableEther, arg, raw)
}

func (c *Client) readAmount(ctx context.Context, contract common.Address, parsed abi.ABI, method, arg string, args ...any) (decimal.Decimal, error) {
	out, err := c.call(ctx, contract, parsed, method, arg, args...)
	if err != nil {
		return decimal.Zero, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok || raw == nil {
		return decimal.Zero, &domain.ChainQueryError{
			Query: method,
			Arg:   arg,
			Err:   fmt.Errorf("unexpected return type %T", out[0]),
		}
	}
	return FromBaseUnits(raw), nil
}

func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method, arg string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, &domain.ChainQueryError{Query: method, Arg: arg, Err: fmt.Errorf("pack: %w", err)}
	}

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, &domain.ChainQueryError{Query: method, Arg: arg, Err: err}
	}

	out, err := parsed.Unpack(method, res)
	if err != nil {
		return nil, &domain.ChainQueryError{Query: method, Arg: arg, Err: fmt.Errorf("unpack: %w", err)}
	}
	if len(out) == 0 {
		return nil, &domain.ChainQueryError{Query: method, Arg: arg, Err: errors.New("empty result")}
	}
	return out, nil
}

// FromBaseUnits converts an 18-decimal on-chain integer into a Decimal
// without rounding.
func FromBaseUnits(raw *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -TokenDecimals)
}

// ToBaseUnits converts a Decimal back into an 18-decimal on-chain integer. It
// rejects negative values and values with more than 18 fractional digits.
func ToBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	shifted := amount.Shift(TokenDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, TokenDecimals)
	}
	return shifted.BigInt(), nil
}

// NormalizeAddress validates an Ethereum address and returns its EIP-55
// checksummed form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%q: %w", address, domain.ErrInvalidAddress)
	}
	return common.HexToAddress(address).Hex(), nil
}

// Compile-time interface check.
var _ domain.ChainReader = (*Client)(nil)
