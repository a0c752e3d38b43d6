package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolStopped 工作池已停止，任务未执行
	ErrPoolStopped = errors.New("worker pool stopped")
	// ErrTaskPanic 任务执行中发生 panic
	ErrTaskPanic = errors.New("worker task panicked")
	// ErrQueueFull 队列在调用方放弃之前一直是满的
	ErrQueueFull = errors.New("worker queue full")
)

const (
	jobPending int32 = iota
	jobRunning
	jobCancelled
)

type job struct {
	fn    func() error
	done  chan error
	state atomic.Int32
}

// Stats 工作池统计
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Executed  int64 `json:"executed"`
	Failed    int64 `json:"failed"`
}

// WorkerPool 有界协程池，阻塞操作（数据库查询、文件写入）都在这里执行
type WorkerPool struct {
	workers int
	queue   chan *job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool

	submitted atomic.Int64
	executed  atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool 创建工作池
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers: workers,
		queue:   make(chan *job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动工作池
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.started = true
	log.Printf("Worker pool started with %d workers", p.workers)
}

// Stop 停止工作池
// 正在执行的任务会跑完；仍在队列中的任务以 ErrPoolStopped 结束。
func (p *WorkerPool) Stop() {
	p.cancel()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case j := <-p.queue:
			if j.state.CompareAndSwap(jobPending, jobCancelled) {
				j.done <- ErrPoolStopped
			}
		default:
			log.Println("Worker pool stopped")
			return
		}
	}
}

// Do 在工作池中执行 fn 并等待其返回
// ctx 只约束排队阶段：任务一旦开始执行，Do 会一直等到它结束，
// 这样调用方持有的资源（如数据库连接）不会在任务仍在使用时被归还。
func (p *WorkerPool) Do(ctx context.Context, fn func() error) error {
	j := &job{fn: fn, done: make(chan error, 1)}

	if err := p.enqueue(ctx, j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobCancelled) {
			return fmt.Errorf("task cancelled before start: %w", ctx.Err())
		}
		return <-j.done
	}
}

func (p *WorkerPool) enqueue(ctx context.Context, j *job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- j:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// worker 工作协程
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.queue:
			p.execute(j)
		case <-p.ctx.Done():
			return
		}
	}
}

// execute 执行任务并捕获 panic
func (p *WorkerPool) execute(j *job) {
	if !j.state.CompareAndSwap(jobPending, jobRunning) {
		return
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic recovered in worker task: %v", r)
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
		p.executed.Add(1)
		if err != nil {
			p.failed.Add(1)
		}
		j.done <- err
	}()

	err = j.fn()
}

// Stats 返回统计信息
func (p *WorkerPool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Executed:  p.executed.Load(),
		Failed:    p.failed.Load(),
	}
}
