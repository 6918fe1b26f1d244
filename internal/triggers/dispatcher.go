package triggers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitsAPI/internal/types/notification"
)

type JobType string

const (
	JobFriendRemove JobType = "friend.remove"
	JobPush         JobType = "push.send"
)

// Job is one idempotent unit of trigger work.
type Job struct {
	ID        string             `json:"id"`
	Type      JobType            `json:"type"`
	UID       string             `json:"uid"`
	FriendUID string             `json:"friendUid,omitempty"`
	Push      *notification.Push `json:"push,omitempty"`
}

func NewJob(t JobType) Job {
	return Job{ID: uuid.NewString(), Type: t}
}

// Handler executes jobs.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// Queue accepts jobs for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

var ErrQueueFull = errors.New("job queue is full")

// Dispatcher runs jobs on an in-process worker pool.
type Dispatcher struct {
	handler  Handler
	workers  int
	jobQueue chan Job
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	timeout  time.Duration
}

func NewDispatcher(handler Handler, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		handler:  handler,
		workers:  workers,
		jobQueue: make(chan Job, 100),
		stopChan: make(chan struct{}),
		timeout:  10 * time.Second,
	}
	d.startWorkers()
	return d
}

func (d *Dispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(id, job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *Dispatcher) processJob(worker int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.handler.Handle(ctx, job); err != nil {
		jobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
		log.Printf("Dispatcher: worker %d: job %s (%s) failed: %v", worker, job.ID, job.Type, err)
		return
	}
	jobsTotal.WithLabelValues(string(job.Type), "ok").Inc()
}

// Enqueue queues job, waiting up to 5 seconds for room.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-d.stopChan:
		return fmt.Errorf("dispatcher stopped")
	default:
	}
	select {
	case d.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		log.Printf("Dispatcher: failed to queue job %s: queue full", job.ID)
		return ErrQueueFull
	}
}

// Stop drains the workers. Jobs still queued are dropped.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		log.Println("Stopping trigger dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Trigger dispatcher stopped")
	})
}
