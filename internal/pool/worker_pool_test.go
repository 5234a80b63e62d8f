package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	t.Run("执行全部任务", func(t *testing.T) {
		p := NewWorkerPool(4, 100, nil)
		p.Start(context.Background())

		var count int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			ok := p.TrySubmit(func(context.Context) {
				defer wg.Done()
				atomic.AddInt64(&count, 1)
			})
			assert.True(t, ok)
		}
		wg.Wait()
		p.Stop()

		assert.Equal(t, int64(50), atomic.LoadInt64(&count))
	})

	t.Run("队列已满拒绝任务", func(t *testing.T) {
		p := NewWorkerPool(1, 0, nil)
		// 未启动的协程池没有消费者，无缓冲队列立即拒绝
		assert.False(t, p.TrySubmit(func(context.Context) {}))
	})

	t.Run("停止后拒绝任务", func(t *testing.T) {
		p := NewWorkerPool(1, 10, nil)
		p.Start(context.Background())
		p.Stop()
		p.Stop()

		assert.False(t, p.TrySubmit(func(context.Context) {}))
	})

	t.Run("任务panic不影响后续任务", func(t *testing.T) {
		p := NewWorkerPool(1, 10, nil)
		p.Start(context.Background())

		done := make(chan struct{})
		assert.True(t, p.TrySubmit(func(context.Context) { panic("boom") }))
		assert.True(t, p.TrySubmit(func(context.Context) { close(done) }))

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task after panic did not run")
		}
		p.Stop()
	})
}
