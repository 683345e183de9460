// Package metrics 提供监控指标收集
//
// ProtocolMetrics 实现 protocol.Observer，把 Start/Stop/Accept/Connect
// 的结果记录为 Prometheus 指标：
//
//	p2p_protocol_operations_total{op="accept",result="error"}
//	p2p_protocol_running
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewProtocolMetrics(reg, "p2p")
//
//	stopped := protocol.New(transport, protocol.WithObserver(m))
//
//	// 导出指标
//	srv := metrics.NewServer("127.0.0.1:9100", reg)
//	_ = srv.Start()
//	defer srv.Stop(ctx)
//
// # 并发安全
//
// Prometheus 采集器本身并发安全，回调可在任意 goroutine 中执行。
package metrics
