package net

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

type workerFunction = func(t *tomb.Tomb, task any) error

type workerPool struct {
	n     int
	tasks chan any
	work  workerFunction
}

func newWorkerPool(size int) workerPool {
	return workerPool{
		tasks: make(chan any, taskChanSize),
		n:     size,
	}
}

func (pool *workerPool) setup(t *tomb.Tomb, work workerFunction) {
	log.Info().Int("activeWorkers", pool.n).Msg("adding workers")
	activeWorkers := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if activeWorkers < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					activeWorkers--
					return err
				})
				activeWorkers++
			}
		}
	}
}

// worker waits on tasks in the pool and actions them, exiting as soon as
// one finishes: the pool above keeps the active count topped back up.
func (pool *workerPool) worker(t *tomb.Tomb, work workerFunction) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
