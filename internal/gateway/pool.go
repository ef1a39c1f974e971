package gateway

import (
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunc handles one queued task; a non-nil error kills the pool's
// tomb, tearing down every other worker with it.
type WorkerFunc func(t *tomb.Tomb, task any) error

// workerPool is a fixed-size pool of goroutines pulling off a shared task
// channel, the same shape the rest of this codebase's ancestry used for its
// TCP connection handlers.
type workerPool struct {
	size  int
	tasks chan any
	log   zerolog.Logger
}

func newWorkerPool(size int, log zerolog.Logger) workerPool {
	return workerPool{
		size:  size,
		tasks: make(chan any, taskChanSize),
		log:   log,
	}
}

func (p *workerPool) addTask(task any) {
	p.tasks <- task
}

func (p *workerPool) run(t *tomb.Tomb, work WorkerFunc) {
	for i := 0; i < p.size; i++ {
		t.Go(func() error {
			return p.worker(t, work)
		})
	}
}

func (p *workerPool) worker(t *tomb.Tomb, work WorkerFunc) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := work(t, task); err != nil {
				p.log.Error().Err(err).Msg("worker exiting")
				return err
			}
		}
	}
}
