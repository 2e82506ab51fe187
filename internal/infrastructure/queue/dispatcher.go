package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tommypurcell/autoscape-api/internal/api/metrics"
	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// Dispatcher routes video jobs to a fixed set of workers using consistent
// hashing on the design short id, so repeated requests for the same design
// are processed in order by the same worker.
type Dispatcher struct {
	workers []chan ports.VideoJob
	service ports.VideoService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.VideoService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.VideoJob, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.VideoJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a job to the worker responsible for its short id. The call
// never blocks: when the shard's buffer is full the job is dropped and
// counted, and the caller retries later.
func (d *Dispatcher) Enqueue(job ports.VideoJob) {
	i := d.shardIndex(job.ShortID)
	select {
	case d.workers[i] <- job:
		metrics.VideoQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(len(d.workers[i])))
	default:
		metrics.VideoJobsTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().
			Str("short_id", job.ShortID).
			Int("worker_id", i).
			Msg("video queue full, job dropped")
	}
}

// shardIndex maps a short id deterministically to a worker index.
func (d *Dispatcher) shardIndex(shortID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(shortID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.VideoJob) {
	workerID := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			metrics.VideoQueueDepth.WithLabelValues(workerID).Set(float64(len(ch)))
			if err := d.service.Process(ctx, job); err != nil {
				d.log.Error().Err(err).
					Str("short_id", job.ShortID).
					Int("worker_id", id).
					Msg("video job failed")
			}
		}
	}
}
