package service

import (
	"context"
	"log"
	"time"
)

// Reaper 过期会话回收器
// 周期性扫描被放弃的计时会话（客户端断开、浏览器崩溃等），
// 调用引擎的 Reap 将它们强制关闭。
// 调度策略（何时扫）在这里，关闭机制（怎么关）在 TimerService，
// 换成外部 cron 或任务编排器时直接调用 TimerService.Reap 即可
type Reaper struct {
	timer     *TimerService // 计时引擎
	interval  time.Duration // 扫描间隔
	threshold time.Duration // 过期阈值
}

// NewReaper 创建 Reaper 实例
// interval 或 threshold 不为正时使用默认值（10 分钟 / 24 小时）
func NewReaper(timer *TimerService, interval, threshold time.Duration) *Reaper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	return &Reaper{
		timer:     timer,
		interval:  interval,
		threshold: threshold,
	}
}

// Run 启动回收循环，阻塞直到 ctx 被取消
// 在单独的 goroutine 中运行：go reaper.Run(ctx)
func (r *Reaper) Run(ctx context.Context) {
	log.Printf("Reaper started: interval=%s threshold=%s", r.interval, r.threshold)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reaper stopped")
			return
		case now := <-ticker.C:
			closed, err := r.timer.Reap(ctx, now, r.threshold)
			if err != nil {
				log.Printf("[WARN] Reaper sweep finished with error: %v", err)
			}
			if len(closed) > 0 {
				log.Printf("Reaper auto-stopped %d stale session(s): %v", len(closed), closed)
			}
		}
	}
}
