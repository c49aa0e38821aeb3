package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StateCounter 提供工作流条目的状态分布
type StateCounter interface {
	ItemsByState(ctx context.Context) (map[string]int64, error)
}

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	states   StateCounter
	logger   *logrus.Logger
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器,states 可以为 nil
func NewCollector(db *gorm.DB, states StateCounter, interval time.Duration, logger *logrus.Logger) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		states:   states,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// CollectOnce 立即收集一次
func (c *Collector) CollectOnce(ctx context.Context) {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		c.logger.WithError(err).Debug("failed to collect database metrics")
	}
	if c.states == nil {
		return
	}
	counts, err := c.states.ItemsByState(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to collect workflow state metrics")
		return
	}
	UpdateItemsByState(counts)
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	c.CollectOnce(c.ctx)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce(c.ctx)
		}
	}
}
