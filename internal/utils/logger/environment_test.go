package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/labomba/deposit-settlement/internal/types/environments"
)

var _ = Describe("Logger Environment", func() {
	It("samples JSON output in production", func() {
		cfg := configFor(environments.Production)

		Expect(cfg.Level.Level()).To(Equal(zap.InfoLevel))
		Expect(cfg.Encoding).To(Equal("json"))
		Expect(cfg.EncoderConfig.TimeKey).To(Equal("ts"))
		Expect(cfg.Sampling).NotTo(BeNil())
		Expect(cfg.OutputPaths).To(Equal([]string{"stdout"}))
	})

	It("logs debug without sampling or stacktraces in staging", func() {
		cfg := configFor(environments.Staging)

		Expect(cfg.Level.Level()).To(Equal(zap.DebugLevel))
		Expect(cfg.Sampling).To(BeNil())
		Expect(cfg.DisableStacktrace).To(BeTrue())
		Expect(cfg.Encoding).To(Equal("json"))
	})

	It("uses the colored console encoder in development", func() {
		cfg := configFor(environments.Development)

		Expect(cfg.Level.Level()).To(Equal(zap.DebugLevel))
		Expect(cfg.Development).To(BeTrue())
		Expect(cfg.Encoding).To(Equal("console"))
	})

	It("discards output in tests", func() {
		cfg := configFor(environments.Test)

		Expect(cfg.OutputPaths).To(BeEmpty())
		Expect(cfg.ErrorOutputPaths).To(BeEmpty())
		Expect(cfg.Sampling).To(BeNil())
	})

	It("treats unknown environments as production", func() {
		Expect(configFor("preview").Sampling).NotTo(BeNil())
	})
})
