package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 指令编码相关指标
type AppMetrics struct {
	EncodeTotal       *prometheus.CounterVec   // labels: command, result=ok|error
	EncodedBytes      *prometheus.HistogramVec // labels: command
	SkippedImages     prometheus.Counter       // 读取失败被跳过的图像帧
	EnqueueTotal      *prometheus.CounterVec   // labels: result=ok|error
	QueueDepth        prometheus.Gauge         // 出站队列长度
	CommandLogFailure prometheus.Counter       // 指令日志写入失败
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		EncodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipixel_encode_total",
			Help: "Command encode attempts by command and result.",
		}, []string{"command", "result"}),
		EncodedBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ipixel_encoded_bytes",
			Help:    "Size of encoded commands in bytes.",
			Buckets: prometheus.ExponentialBuckets(4, 4, 8),
		}, []string{"command"}),
		SkippedImages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ipixel_skipped_image_frames_total",
			Help: "Image frames skipped because the source could not be read.",
		}),
		EnqueueTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipixel_outbound_enqueue_total",
			Help: "Encoded commands pushed to the outbound queue.",
		}, []string{"result"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ipixel_outbound_queue_depth",
			Help: "Current number of commands waiting in the outbound queue.",
		}),
		CommandLogFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ipixel_command_log_failures_total",
			Help: "Failed command log writes.",
		}),
	}
	reg.MustRegister(m.EncodeTotal, m.EncodedBytes, m.SkippedImages, m.EnqueueTotal, m.QueueDepth, m.CommandLogFailure)
	return m
}

// ObserveEncode 记录一次编码结果
func (m *AppMetrics) ObserveEncode(command string, size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EncodeTotal.WithLabelValues(command, "error").Inc()
		return
	}
	m.EncodeTotal.WithLabelValues(command, "ok").Inc()
	m.EncodedBytes.WithLabelValues(command).Observe(float64(size))
}
