package EVMRPC

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"golockbridge/types"
)

// hardhat account #0
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type downChain struct {
	fakeChain
	calls int
}

func (d *downChain) BlockNumber(context.Context) (uint64, error) {
	d.calls++
	return 0, errors.New("connection refused")
}

func (d *downChain) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	d.calls++
	return nil, ethereum.NotFound
}

func TestFailoverClient_FallsThrough(t *testing.T) {
	down := &downChain{}
	up := newFakeChain()
	up.head = 42

	f := NewFailoverClient(zap.NewNop(), down, up)
	head, err := f.BlockNumber(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), head)
	require.Equal(t, 1, down.calls)
}

func TestFailoverClient_ReceiptSearchesEveryNode(t *testing.T) {
	down := &downChain{}
	up := newFakeChain()
	hash := common.HexToHash("0x01")
	up.receipts[hash] = &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}

	f := NewFailoverClient(zap.NewNop(), down, up)
	receipt, err := f.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	_, err = f.TransactionReceipt(context.Background(), common.HexToHash("0x02"))
	require.ErrorIs(t, err, ethereum.NotFound)
}

func TestFailoverClient_NoEndpoints(t *testing.T) {
	_, err := NewFailoverClient(zap.NewNop()).BlockNumber(context.Background())
	require.Error(t, err)
}

func TestKeyedSigner_Submit(t *testing.T) {
	chain := newFakeChain()
	chain.nonce = 7
	signer, err := NewKeyedSigner(chain, testKey, 31337)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", signer.Address().Hex())

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	hash, err := signer.Submit(context.Background(), TxCall{To: to, Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)

	tx := chain.sent[0]
	require.Equal(t, hash, tx.Hash())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(120_000), tx.Gas())
	require.Equal(t, &to, tx.To())

	from, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(31337)), tx)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), from)
}

func TestKeyedSigner_BadKey(t *testing.T) {
	_, err := NewKeyedSigner(newFakeChain(), "not-a-key", 1)
	require.Error(t, err)
}

// lostAckChain keeps the transaction but the acknowledgement never arrives
type lostAckChain struct{ *fakeChain }

func (l lostAckChain) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	_ = l.fakeChain.SendTransaction(ctx, tx)
	return errors.New("i/o timeout")
}

func TestKeyedSigner_SendFailureReturnsHash(t *testing.T) {
	chain := lostAckChain{newFakeChain()}
	signer, err := NewKeyedSigner(chain, testKey, 31337)
	require.NoError(t, err)

	hash, err := signer.Submit(context.Background(), TxCall{To: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")})
	require.ErrorIs(t, err, types.ErrBroadcastUncertain)
	require.False(t, errors.Is(err, types.ErrTransactionRejected))
	require.Len(t, chain.sent, 1)
	require.NotEqual(t, common.Hash{}, hash)
	require.Equal(t, chain.sent[0].Hash(), hash)
	require.True(t, types.Recoverable(types.KindOf(err)))
}

type rejectingChain struct{ fakeChain }

func (r *rejectingChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("execution reverted")
}

func TestKeyedSigner_EstimateFailureIsRejection(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	chain := &rejectingChain{}
	signer, err := NewKeyedSigner(chain, common.Bytes2Hex(crypto.FromECDSA(key)), 1)
	require.NoError(t, err)

	_, err = signer.Submit(context.Background(), TxCall{To: common.Address{}})
	require.ErrorIs(t, err, types.ErrTransactionRejected)
	require.Empty(t, chain.sent)
}
