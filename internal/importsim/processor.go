package importsim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autolot/dealer-admin/internal/importer"
	"github.com/autolot/dealer-admin/pkg/metrics"
	"go.uber.org/zap"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
)

// Processor commits confirmed sessions in the background after a delay.
type Processor struct {
	store  *Store
	delay  time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

func NewProcessor(store *Store, delay time.Duration) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		store:  store,
		delay:  delay,
		ctx:    ctx,
		cancel: cancel,
		log:    zap.S().Named("import_processor"),
	}
}

// Submit schedules the commit of a session already marked as processing.
func (p *Processor) Submit(jobID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer utilruntime.HandleCrash()

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(p.delay):
		}

		if err := p.commit(jobID); err != nil {
			p.log.Warnw("import not committed", "job_id", jobID, "error", err)
		}
	}()
}

func (p *Processor) commit(jobID string) error {
	sess, err := p.store.GetSession(jobID)
	if err != nil {
		// deleted while waiting
		return err
	}

	valid, _ := importer.Partition(sess.Preview, sess.Errors)
	added, duplicates := p.store.AddCars(valid)
	metrics.AddRowsImportedMetric(added)

	errs := append(sess.Errors, duplicates...)
	final, err := p.store.FinishSession(jobID, errs)
	if err != nil {
		var notFound *ErrSessionNotFound
		if errors.As(err, &notFound) {
			p.log.Infow("session removed during commit", "job_id", jobID, "added", added)
		}
		return err
	}

	metrics.IncreaseJobsFinishedTotalMetric(string(final.Status))
	p.log.Infow("import committed", "job_id", jobID, "status", final.Status, "added", added, "errors", len(final.Errors))
	return nil
}

// Stop abandons pending commits and waits for running ones.
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
}
