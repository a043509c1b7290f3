package loader

import (
	"context"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
)

const testPoolAddr = "Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE"
const testMintA = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
const testMintB = "So11111111111111111111111111111111111111112"

func buildWhirlpoolAccountData(t *testing.T, mintA, mintB string) []byte {
	t.Helper()
	const mintAOffset = 32 + 1 + 2 + 2 + 2 + 2 + 16 + 16 + 4 + 8 + 8
	const mintBOffset = mintAOffset + 32 + 32 + 16
	buf := make([]byte, whirlpoolDiscriminatorLen+mintBOffset+32)

	a, err := base58.Decode(mintA)
	if err != nil {
		t.Fatalf("decode mintA: %v", err)
	}
	b, err := base58.Decode(mintB)
	if err != nil {
		t.Fatalf("decode mintB: %v", err)
	}
	copy(buf[whirlpoolDiscriminatorLen+mintAOffset:], a)
	copy(buf[whirlpoolDiscriminatorLen+mintBOffset:], b)
	return buf
}

type fakeLoaderRPC struct {
	accounts map[string]chainrpc.AccountInfo
}

func (f *fakeLoaderRPC) GetSignaturesForAddress(_ context.Context, _ string, _ chainrpc.GetSignaturesForAddressParams) ([]chainrpc.SignatureInfo, error) {
	return nil, nil
}

func (f *fakeLoaderRPC) GetTransaction(_ context.Context, signature string) (chainrpc.Transaction, error) {
	return chainrpc.Transaction{Signature: signature}, nil
}

func (f *fakeLoaderRPC) GetAccountWithCommitment(_ context.Context, pubkey string, _ chainrpc.Commitment) (chainrpc.AccountInfo, error) {
	acc, ok := f.accounts[pubkey]
	if !ok {
		return chainrpc.AccountInfo{}, errNotFound
	}
	return acc, nil
}

type fakeRegistry struct {
	upserted []model.Pool
}

func (f *fakeRegistry) AllPools(_ context.Context, _ model.DEXTag) ([]model.Pool, error) {
	return nil, nil
}

func (f *fakeRegistry) GetPool(_ context.Context, _ model.DEXTag, _ string) (model.Pool, bool, error) {
	return model.Pool{}, false, nil
}

func (f *fakeRegistry) UpsertPool(_ context.Context, pool model.Pool, _, _ model.Token) error {
	f.upserted = append(f.upserted, pool)
	return nil
}

func (f *fakeRegistry) EffectivePubkeys(_ context.Context, _ model.DEXTag, _ []string, def string) ([]string, error) {
	return []string{def}, nil
}

func TestLoadOrcaPoolDecodesMintsAndUpserts(t *testing.T) {
	mintAccount := make([]byte, 50)
	mintAccount[mintDecimalsOffset] = 9

	rpc := &fakeLoaderRPC{accounts: map[string]chainrpc.AccountInfo{
		testPoolAddr: {Data: buildWhirlpoolAccountData(t, testMintA, testMintB)},
		testMintA:    {Data: mintAccount},
		testMintB:    {Data: mintAccount},
	}}
	registry := &fakeRegistry{}
	l := New(rpc, registry, nil)

	err := l.LoadOrcaPool(context.Background(), testPoolAddr)
	require.NoError(t, err)
	require.Len(t, registry.upserted, 1)
	got := registry.upserted[0]
	require.Equal(t, testMintA, got.TokenAMint)
	require.Equal(t, testMintB, got.TokenBMint)
}

func TestLoadOrcaPoolRejectsBadAddress(t *testing.T) {
	l := New(&fakeLoaderRPC{accounts: map[string]chainrpc.AccountInfo{}}, &fakeRegistry{}, nil)
	err := l.LoadOrcaPool(context.Background(), "not-valid-base58-!!!")
	require.Error(t, err)
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "account not found" }
