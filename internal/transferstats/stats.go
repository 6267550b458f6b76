// Package transferstats aggregates the progress and outcomes of uploads.
package transferstats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/uploadkit/uploader/internal/upload"
)

// TransferStats reports upload progress and totals.
type TransferStats interface {
	upload.Observer

	// GetStats returns byte counts summed over all uploads.
	GetStats() Stats

	// GetOutcomes returns how many uploads ended in each way.
	GetOutcomes() Outcomes

	// InFlight returns the number of uploads that have not finished.
	InFlight() int
}

// Stats are byte counts summed over uploads.
type Stats struct {
	SentBytes  int64
	TotalBytes int64
}

// Outcomes counts finished uploads.
type Outcomes struct {
	Succeeded int32
	Aborted   int32
	Failed    int32
}

type uploadInfo struct {
	sent, total int64
}

type transferStats struct {
	sync.Mutex

	infoByID map[string]uploadInfo
	finished map[string]struct{}

	sentBytes  *atomic.Int64
	totalBytes *atomic.Int64

	succeeded *atomic.Int32
	aborted   *atomic.Int32
	failed    *atomic.Int32

	outcomes *prometheus.CounterVec
}

// New returns stats whose metrics are registered with reg.
//
// If reg is nil, no metrics are exported.
func New(reg prometheus.Registerer) (TransferStats, error) {
	ts := &transferStats{
		infoByID: make(map[string]uploadInfo),
		finished: make(map[string]struct{}),

		sentBytes:  &atomic.Int64{},
		totalBytes: &atomic.Int64{},

		succeeded: &atomic.Int32{},
		aborted:   &atomic.Int32{},
		failed:    &atomic.Int32{},

		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uploader_uploads_total",
			Help: "Number of finished uploads by outcome.",
		}, []string{"outcome"}),
	}

	if reg == nil {
		return ts, nil
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uploader_bytes_sent",
			Help: "Bytes sent so far, summed over uploads.",
		}, func() float64 { return float64(ts.sentBytes.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uploader_bytes_total",
			Help: "Bytes to send, summed over uploads.",
		}, func() float64 { return float64(ts.totalBytes.Load()) }),
		ts.outcomes,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("transferstats: registering metric: %v", err)
		}
	}

	return ts, nil
}

func (ts *transferStats) GetStats() Stats {
	// NOTE: We don't lock, so these could be out of sync.
	return Stats{
		SentBytes:  ts.sentBytes.Load(),
		TotalBytes: ts.totalBytes.Load(),
	}
}

func (ts *transferStats) GetOutcomes() Outcomes {
	return Outcomes{
		Succeeded: ts.succeeded.Load(),
		Aborted:   ts.aborted.Load(),
		Failed:    ts.failed.Load(),
	}
}

func (ts *transferStats) InFlight() int {
	ts.Lock()
	defer ts.Unlock()

	inFlight := 0
	for id := range ts.infoByID {
		if _, done := ts.finished[id]; !done {
			inFlight++
		}
	}
	return inFlight
}

// UploadProgress implements upload.Observer.UploadProgress.
func (ts *transferStats) UploadProgress(id string, sent, total int64) {
	ts.Lock()
	defer ts.Unlock()

	if old, ok := ts.infoByID[id]; ok {
		ts.sentBytes.Add(-old.sent)
		ts.totalBytes.Add(-old.total)
	}

	ts.infoByID[id] = uploadInfo{sent: sent, total: total}
	ts.sentBytes.Add(sent)
	ts.totalBytes.Add(total)
}

// UploadFinished implements upload.Observer.UploadFinished.
func (ts *transferStats) UploadFinished(id string, outcome upload.Outcome) {
	ts.Lock()
	defer ts.Unlock()

	if _, ok := ts.finished[id]; ok {
		return
	}
	ts.finished[id] = struct{}{}
	if _, ok := ts.infoByID[id]; !ok {
		ts.infoByID[id] = uploadInfo{}
	}

	switch outcome {
	case upload.OutcomeSucceeded:
		ts.succeeded.Add(1)
	case upload.OutcomeAborted:
		ts.aborted.Add(1)
	default:
		ts.failed.Add(1)
	}
	ts.outcomes.WithLabelValues(outcome.String()).Inc()
}

// Push sends the metrics gathered by g to a Prometheus Pushgateway.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if url == "" {
		return errors.New("transferstats: no pushgateway URL")
	}

	err := push.New(url, job).Gatherer(g).PushContext(ctx)
	if err != nil {
		return fmt.Errorf("transferstats: pushing metrics: %v", err)
	}
	return nil
}
