// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"time"
)

// Job represents a named task that runs at a fixed interval and on demand. It never overlaps
// with itself (singleton mode).
type Job struct {
	name     string
	interval time.Duration
	task     func(context.Context)
	trigger  chan struct{}
}

// New creates a new Job with the given name, interval and task.
func New(name string, interval time.Duration, task func(context.Context)) *Job {
	return &Job{
		name:     name,
		interval: interval,
		task:     task,
		trigger:  make(chan struct{}, 1),
	}
}

// Name returns the name of the job.
func (j *Job) Name() string {
	return j.name
}

// Trigger requests a run outside of the interval. Requests made while one is already pending
// are merged into it.
func (j *Job) Trigger() {
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

// Start runs the task once and then on every tick until the context is cancelled. A tick or
// trigger that fires while a previous run is still executing is skipped.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// sem is a 1-slot semaphore that guards "is a run in progress?"
	sem := make(chan struct{}, 1)
	run := func() {
		select {
		case sem <- struct{}{}:
			go func() {
				defer func() { <-sem }()
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				j.task(runCtx)
			}()
		default:
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-j.trigger:
			run()
		}
	}
}
