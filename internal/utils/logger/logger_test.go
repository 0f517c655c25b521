package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/labomba/deposit-settlement/internal/types/environments"
)

type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(_ *zapcore.CheckedEntry, _ []zapcore.Field) {
	h.called = true
}

func observed(level zapcore.Level, opts ...zap.Option) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{wrappedLogger: zap.New(core, opts...)}, logs
}

var _ = Describe("Logger", func() {
	Describe("#New", func() {
		It("builds a logger for every known environment", func() {
			for _, env := range []environments.Environment{
				environments.Production, environments.Staging, environments.Development, environments.Test,
			} {
				Expect(New(env).wrappedLogger).NotTo(BeNil())
			}
		})

		It("falls back to production levels for an unknown environment", func() {
			core := New(environments.Environment("unknown")).wrappedLogger.Core()
			Expect(core.Enabled(zapcore.InfoLevel)).To(BeTrue())
			Expect(core.Enabled(zapcore.DebugLevel)).To(BeFalse())
		})
	})

	Describe("levels", func() {
		It("writes each level with its fields", func() {
			logger, logs := observed(zapcore.DebugLevel)

			logger.Debug("[Verify] cache hit", map[string]string{"network": "base"})
			logger.Info("[SubmitClaim] claim stored")
			logger.Warn("[RunReconciliation] gap", map[string]string{"claim_id": "c-1"})
			logger.Error("[ApproveClaim][Credit]", map[string]string{"error": "timeout"})

			entries := logs.All()
			Expect(entries).To(HaveLen(4))
			Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("network", "base"))
			Expect(entries[1].Context).To(BeEmpty())
			Expect(entries[2].Level).To(Equal(zapcore.WarnLevel))
			Expect(entries[3].ContextMap()).To(HaveKeyWithValue("error", "timeout"))
		})

		It("skips entries below the configured level", func() {
			logger, logs := observed(zapcore.InfoLevel)
			logger.Debug("noise", map[string]string{"k": "v"})
			Expect(logs.Len()).To(BeZero())
		})

		It("runs the fatal hook", func() {
			hook := &fatalHook{}
			logger, logs := observed(zapcore.InfoLevel, zap.WithFatalHook(hook))

			logger.Fatal("[Init][Validate] invalid configuration", map[string]string{"error": "JWT_SECRET is required"})

			Expect(hook.called).To(BeTrue())
			Expect(logs.Len()).To(Equal(1))
		})
	})

	Describe("#With", func() {
		It("adds fields to every entry of the child only", func() {
			parent, logs := observed(zapcore.InfoLevel)
			child := parent.With(map[string]string{"network": "solana"})

			child.Info("[Fetch] tx not found", map[string]string{"tx_hash": "abc"})
			parent.Info("[Init] done")

			entries := logs.All()
			Expect(entries[0].ContextMap()).To(Equal(map[string]interface{}{"network": "solana", "tx_hash": "abc"}))
			Expect(entries[1].ContextMap()).To(BeEmpty())
		})
	})

	Describe("#toFields", func() {
		It("orders fields by key", func() {
			fields := toFields(map[string]string{"user_id": "u-1", "amount": "12.5", "claim_id": "c-1"})
			Expect(fields).To(Equal([]zap.Field{
				zap.String("amount", "12.5"),
				zap.String("claim_id", "c-1"),
				zap.String("user_id", "u-1"),
			}))
		})

		It("masks secret-bearing keys", func() {
			fields := toFields(map[string]string{
				"Authorization":      "Bearer abc",
				"link_token":         "eyJ...",
				"ledger_service_key": "sk",
				"idempotency_key":    "claim-1",
				"empty_secret":       "",
			})
			Expect(fields).To(ContainElements(
				zap.String("Authorization", redacted),
				zap.String("link_token", redacted),
				zap.String("ledger_service_key", redacted),
				zap.String("idempotency_key", "claim-1"),
				zap.String("empty_secret", ""),
			))
		})

		It("returns no fields for an empty map", func() {
			Expect(toFields(map[string]string{})).To(BeEmpty())
		})
	})
})
