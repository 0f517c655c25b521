package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/labomba/deposit-settlement/internal/chain"
	"github.com/labomba/deposit-settlement/internal/chain/evm"
	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/model"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

const (
	txHash      = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	custody     = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"
	wrongWallet = "0xDEADBEEF00000000000000000000000000000000"
	otherToken  = "0x9999999999999999999999999999999999999999"
)

var _ = Describe("Verifier", func() {
	var (
		client   *stubReceiptClient
		recorder *recordingRecorder
		v        IVerifier
		ctx      context.Context
	)

	newVerifier := func(ttl time.Duration, adapters ...chain.IAdapter) IVerifier {
		return New(chain.NewRegistry(adapters...), ttl, recorder, logger.New("test"))
	}

	BeforeEach(func() {
		ctx = context.Background()
		recorder = &recordingRecorder{}
		client = &stubReceiptClient{receipts: map[common.Hash]*types.Receipt{}}
		base := evm.New(model.NetworkBase, config.ChainConfig{AssetID: consts.BaseUSDCContract}, client, time.Second, logger.New("test"))
		v = newVerifier(0, base)
	})

	Describe("input validation", func() {
		It("rejects malformed hashes without fetching", func() {
			verdict := v.Verify(ctx, model.NetworkBase, "0x1234", custody)

			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorMalformedHash))
			Expect(verdict.Retryable).To(BeFalse())
			Expect(client.calls.Load()).To(BeZero())
		})

		It("rejects networks without an adapter", func() {
			verdict := v.Verify(ctx, model.NetworkSolana, txHash, custody)

			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorUnsupportedNetwork))
			Expect(client.calls.Load()).To(BeZero())
		})
	})

	Describe("fetch failures", func() {
		It("reports a missing transaction as not found and retryable", func() {
			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.TransactionFound).To(BeFalse())
			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorNotFound))
			Expect(verdict.Retryable).To(BeTrue())
		})

		It("reports rpc outages as retryable rpc_unreachable", func() {
			client.err = errors.New("dial tcp 10.0.0.1:443: i/o timeout")

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.TransactionFound).To(BeFalse())
			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorRPCUnreachable))
			Expect(verdict.Retryable).To(BeTrue())
		})

		It("stops at a transaction that failed on chain", func() {
			client.receipts[common.HexToHash(txHash)] = &types.Receipt{Status: types.ReceiptStatusFailed}

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.TransactionFound).To(BeTrue())
			Expect(verdict.Confirmed).To(BeFalse())
			Expect(verdict.DetectedAmount).To(BeNil())
			Expect(verdict.ErrorCode).To(BeEmpty())
		})
	})

	Describe("transfer policy", func() {
		It("detects a USDC deposit to custody", func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(usdcLog(consts.BaseUSDCContract, custody, 25000000))

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.TransactionFound).To(BeTrue())
			Expect(verdict.Confirmed).To(BeTrue())
			Expect(verdict.DestinationMatchesCustodyAddress).To(BeTrue())
			Expect(verdict.DetectedAmount).NotTo(BeNil())
			Expect(verdict.DetectedAmount.Equal(dec("25.00"))).To(BeTrue())
			Expect(verdict.Creditable()).To(BeTrue())
			Expect(recorder.outcomes).To(ConsistOf("base:custody_match"))
		})

		It("compares EVM custody addresses case-insensitively", func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(usdcLog(consts.BaseUSDCContract, custody, 1000000))

			verdict := v.Verify(ctx, model.NetworkBase, txHash, "0xabcdef0123456789abcdef0123456789abcdef01")

			Expect(verdict.DestinationMatchesCustodyAddress).To(BeTrue())
		})

		It("flags a wrong destination without claiming the transaction is missing", func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(usdcLog(consts.BaseUSDCContract, wrongWallet, 25000000))

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.TransactionFound).To(BeTrue())
			Expect(verdict.DestinationMatchesCustodyAddress).To(BeFalse())
			Expect(verdict.ObservedWrongDestination).To(Equal("0xdeadbeef00000000000000000000000000000000"))
			Expect(verdict.DetectedAmount).To(BeNil())
			Expect(verdict.NoAssetTransfer).To(BeFalse())
		})

		It("ignores other tokens sent to custody", func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(
				usdcLog(otherToken, custody, 500000000),
				usdcLog(consts.BaseUSDCContract, custody, 7500000),
			)

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.DetectedAmount.Equal(dec("7.5"))).To(BeTrue())
		})

		It("reports no asset transfer distinctly from a wrong destination", func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(usdcLog(otherToken, custody, 500000000))

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.NoAssetTransfer).To(BeTrue())
			Expect(verdict.DestinationMatchesCustodyAddress).To(BeFalse())
			Expect(verdict.ObservedWrongDestination).To(BeEmpty())
		})

		It("prefers the custody transfer over an earlier wrong one and takes the first match", func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(
				usdcLog(consts.BaseUSDCContract, wrongWallet, 1000000),
				usdcLog(consts.BaseUSDCContract, custody, 3000000),
				usdcLog(consts.BaseUSDCContract, custody, 9000000),
			)

			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(verdict.DestinationMatchesCustodyAddress).To(BeTrue())
			Expect(verdict.ObservedWrongDestination).To(BeEmpty())
			Expect(verdict.DetectedAmount.Equal(dec("3"))).To(BeTrue())
		})
	})

	Describe("extraction failures", func() {
		It("converts an extractor panic into a verdict", func() {
			v = newVerifier(0, &scriptedAdapter{confirmed: true, panicMsg: "index out of range"})

			var verdict model.VerificationVerdict
			Expect(func() {
				verdict = v.Verify(ctx, model.NetworkPolygon, txHash, custody)
			}).NotTo(Panic())
			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorExtractionFailed))
			Expect(verdict.ErrorReason).To(ContainSubstring("index out of range"))
		})

		It("treats lookup outages during extraction as retryable", func() {
			v = newVerifier(0, &scriptedAdapter{
				confirmed:  true,
				extractErr: chain.NewFetchError(chain.FetchRPCUnreachable, model.NetworkPolygon, errors.New("429")),
			})

			verdict := v.Verify(ctx, model.NetworkPolygon, txHash, custody)

			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorRPCUnreachable))
			Expect(verdict.Retryable).To(BeTrue())
		})

		It("reports decode errors as extraction failures", func() {
			v = newVerifier(0, &scriptedAdapter{confirmed: true, extractErr: errors.New("unpack transfer data")})

			verdict := v.Verify(ctx, model.NetworkPolygon, txHash, custody)

			Expect(verdict.ErrorCode).To(Equal(model.VerdictErrorExtractionFailed))
			Expect(verdict.Retryable).To(BeFalse())
		})
	})

	Describe("repeatability", func() {
		BeforeEach(func() {
			client.receipts[common.HexToHash(txHash)] = successReceipt(usdcLog(consts.BaseUSDCContract, custody, 25000000))
		})

		It("returns the same verdict on every call", func() {
			first := v.Verify(ctx, model.NetworkBase, txHash, custody)
			for i := 0; i < 3; i++ {
				again := v.Verify(ctx, model.NetworkBase, txHash, custody)
				again.CheckedAt = first.CheckedAt
				Expect(again.DetectedAmount.Equal(*first.DetectedAmount)).To(BeTrue())
				again.DetectedAmount = first.DetectedAmount
				Expect(again).To(Equal(first))
			}
			Expect(client.calls.Load()).To(Equal(int32(4)))
		})

		It("serves final verdicts from cache", func() {
			base := evm.New(model.NetworkBase, config.ChainConfig{AssetID: consts.BaseUSDCContract}, client, time.Second, logger.New("test"))
			v = newVerifier(time.Minute, base)

			first := v.Verify(ctx, model.NetworkBase, txHash, custody)
			second := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(client.calls.Load()).To(Equal(int32(1)))
			Expect(second.DetectedAmount.Equal(*first.DetectedAmount)).To(BeTrue())
		})

		It("never caches indeterminate verdicts", func() {
			base := evm.New(model.NetworkBase, config.ChainConfig{AssetID: consts.BaseUSDCContract}, client, time.Second, logger.New("test"))
			v = newVerifier(time.Minute, base)
			client.err = errors.New("connection refused")

			v.Verify(ctx, model.NetworkBase, txHash, custody)
			client.err = nil
			verdict := v.Verify(ctx, model.NetworkBase, txHash, custody)

			Expect(client.calls.Load()).To(Equal(int32(2)))
			Expect(verdict.Creditable()).To(BeTrue())
		})
	})
})
