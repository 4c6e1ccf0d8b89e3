/*
 * This file is part of Audio Transcripter (https://github.com/akshaymugale01/audio-transcripter).
 * Copyright (C) 2025 Akshay Mugale
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/akshaymugale01/audio-transcripter/internal/logging"
)

// Job is one unit of background work
type Job interface {
	ID() string
	Execute(ctx context.Context) error
}

// Pool runs jobs on a fixed set of worker goroutines. A panicking job is
// contained at the job boundary: the worker logs it, the session the job was
// driving is left to its own failure handling, and the worker keeps serving.
type Pool struct {
	workers int
	queue   chan Job

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewPool creates a pool with the given worker count and queue depth
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		queue:   make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
}

// Enqueue submits a job. Fails when the queue is full or the pool is stopped
// rather than blocking the caller.
func (p *Pool) Enqueue(job Job) error {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return fmt.Errorf("pool is stopped")
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return fmt.Errorf("job queue full, rejecting %s", job.ID())
	}
}

// Stop drains nothing: queued jobs are abandoned, running jobs get their
// context cancelled, and Stop returns once every worker has exited.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(id, job)
		}
	}
}

// runJob executes one job with panic containment at the job boundary
func (p *Pool) runJob(workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError(fmt.Errorf("panic: %v", r), "Job panicked",
				zap.Int("worker", workerID),
				zap.String("job", job.ID()))
		}
	}()

	if err := job.Execute(p.ctx); err != nil {
		logging.LogError(err, "Job failed",
			zap.Int("worker", workerID),
			zap.String("job", job.ID()))
	}
}
