package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	"github.com/relloyd/starpipe/logger"
)

var _ = Describe("Logger", func() {
	var (
		out *bytes.Buffer
		l   *logger.LoggerImpl
	)

	entry := func() map[string]interface{} {
		var actual map[string]interface{}
		Expect(json.Unmarshal(out.Bytes(), &actual)).To(Succeed())
		return actual
	}

	BeforeEach(func() {
		out = &bytes.Buffer{}
		l = logger.NewLogger("starpipe-test", "debug", false)
		l.SetJSON()
		l.SetOutput(out)
	})

	It("tags every entry with the service name", func() {
		l.Info("run started")
		Expect(entry()["service"]).To(Equal("starpipe-test"))
		Expect(entry()["msg"]).To(Equal("run started"))
	})

	table.DescribeTable("writes the level of each call",
		func(logFn func(l logger.Logger), level string) {
			logFn(l)
			Expect(entry()["level"]).To(Equal(level))
		},
		table.Entry("debug", func(l logger.Logger) { l.Debug("rows read") }, "debug"),
		table.Entry("info", func(l logger.Logger) { l.Info("stage complete") }, "info"),
		table.Entry("warn", func(l logger.Logger) { l.Warn("store close failed") }, "warning"),
		table.Entry("error", func(l logger.Logger) { l.Error("stage failed") }, "error"),
	)

	It("drops entries below the configured level", func() {
		l = logger.NewLogger("starpipe-test", "warn", false)
		l.SetJSON()
		l.SetOutput(out)
		l.Info("hidden")
		Expect(out.Len()).To(BeZero())
	})

	It("adds a stack trace to errors when asked to", func() {
		l = logger.NewLogger("starpipe-test", "info", true)
		l.SetJSON()
		l.SetOutput(out)
		l.Error("stage failed")
		Expect(entry()["stackTrace"]).ToNot(BeNil())
	})

	It("carries stage fields on child loggers", func() {
		l.WithFields(map[string]interface{}{"stage": "cleanse", "rows_out": 3}).Info("stage complete")
		actual := entry()
		Expect(actual["stage"]).To(Equal("cleanse"))
		Expect(actual["rows_out"]).To(BeNumerically("==", 3))
		Expect(actual["service"]).To(Equal("starpipe-test"))
	})

	It("emits JSON in lambda mode", func() {
		l = logger.NewLambdaLogger("starpipe-lambda", "info", nil)
		l.SetOutput(out)
		l.Info("invoked")
		Expect(entry()["service"]).To(Equal("starpipe-lambda"))
	})
})
