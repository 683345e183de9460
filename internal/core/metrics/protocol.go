package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-p2p-transport/pkg/protocol"
)

// 操作标签
const (
	OpStart   = "start"
	OpStop    = "stop"
	OpAccept  = "accept"
	OpConnect = "connect"

	ResultOK    = "ok"
	ResultError = "error"
)

// ProtocolMetrics 协议生命周期指标
type ProtocolMetrics struct {
	operations *prometheus.CounterVec
	running    prometheus.Gauge
}

var _ protocol.Observer = (*ProtocolMetrics)(nil)

// NewProtocolMetrics 创建并注册协议指标
func NewProtocolMetrics(reg prometheus.Registerer, namespace string) *ProtocolMetrics {
	m := &ProtocolMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "operations_total",
			Help:      "Completed protocol operations by operation and result.",
		}, []string{"op", "result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "running",
			Help:      "Number of protocol instances currently in the running state.",
		}),
	}

	// 预先创建全部标签组合，未发生的操作也以 0 导出
	for _, op := range []string{OpStart, OpStop, OpAccept, OpConnect} {
		m.operations.WithLabelValues(op, ResultOK)
		m.operations.WithLabelValues(op, ResultError)
	}

	if reg != nil {
		reg.MustRegister(m.operations, m.running)
	}
	return m
}

// OnStart 记录 Start 结果
func (m *ProtocolMetrics) OnStart(err error) {
	m.observe(OpStart, err)
	if err == nil {
		m.running.Inc()
	}
}

// OnStop 记录 Stop 结果
//
// Stop 无论成功与否都会离开运行状态。
func (m *ProtocolMetrics) OnStop(err error) {
	m.observe(OpStop, err)
	m.running.Dec()
}

// OnAccept 记录 Accept 结果
func (m *ProtocolMetrics) OnAccept(err error) {
	m.observe(OpAccept, err)
}

// OnConnect 记录 Connect 结果
func (m *ProtocolMetrics) OnConnect(err error) {
	m.observe(OpConnect, err)
}

func (m *ProtocolMetrics) observe(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(op, result).Inc()
}
