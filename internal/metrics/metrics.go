package metrics

import "github.com/zeromicro/go-zero/core/metric"

// Collection 是贯穿 pipeline 的指标句柄。
// pipeline 核心只负责透传，从不读取；真正打点的是各 Processor 与 ingestion 层。
// nil Collection 合法，所有方法内部做空值兜底，便于测试场景省略指标。
type Collection struct {
	txProcessed      metric.CounterVec
	nodeProcessed    metric.CounterVec
	processorFailure metric.CounterVec
}

func NewCollection() *Collection {
	return &Collection{
		txProcessed: metric.NewCounterVec(&metric.CounterVecOpts{
			Namespace: "ix_pipeline",
			Subsystem: "ingest",
			Name:      "tx_processed_total",
			Help:      "已完成 pipeline 遍历的交易数",
			Labels:    []string{"result"},
		}),
		nodeProcessed: metric.NewCounterVec(&metric.CounterVecOpts{
			Namespace: "ix_pipeline",
			Subsystem: "pipe",
			Name:      "node_processed_total",
			Help:      "Processor 成功消费的指令节点数",
			Labels:    []string{"pipe"},
		}),
		processorFailure: metric.NewCounterVec(&metric.CounterVecOpts{
			Namespace: "ix_pipeline",
			Subsystem: "pipe",
			Name:      "processor_failure_total",
			Help:      "Processor 返回 error 导致遍历中止的次数",
			Labels:    []string{"pipe"},
		}),
	}
}

func (c *Collection) IncTxProcessed(result string) {
	if c == nil {
		return
	}
	c.txProcessed.Inc(result)
}

func (c *Collection) IncNodeProcessed(pipe string) {
	if c == nil {
		return
	}
	c.nodeProcessed.Inc(pipe)
}

func (c *Collection) IncProcessorFailure(pipe string) {
	if c == nil {
		return
	}
	c.processorFailure.Inc(pipe)
}
