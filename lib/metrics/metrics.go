/*package metrics collects per-run counters for gadget-subsample and exports
them in the Prometheus text format, e.g. for node_exporter's textfile
collector. Every run gets its own registry.
*/
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
)

const namespace = "gadget_subsample"

type Metrics struct {
	Registry *prometheus.Registry

	FilesWritten     prometheus.Counter
	ParticlesRead    prometheus.Counter
	ParticlesWritten prometheus.Counter
	BytesCopied      *prometheus.CounterVec
	CopyDuration     *prometheus.HistogramVec
	Failures         *prometheus.CounterVec
	RunDuration      prometheus.Gauge
}

// New creates a set of metrics registered with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		FilesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Number of output files written and verified",
		}),
		ParticlesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "particles_read_total",
			Help:      "Number of source particles considered for selection",
		}),
		ParticlesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "particles_written_total",
			Help:      "Number of particles written to output files",
		}),
		BytesCopied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_copied_total",
			Help:      "Record bytes copied into output blocks",
		}, []string{"field"}),
		CopyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "copy_duration_seconds",
			Help:      "Time spent copying a single output block",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}, []string{"field"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Runs which failed, by error kind",
		}, []string{"kind"}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the most recent run",
		}),
	}
}

// ObserveCopy records a single block copy.
func (m *Metrics) ObserveCopy(field string, bytes int64, elapsed time.Duration) {
	m.BytesCopied.WithLabelValues(field).Add(float64(bytes))
	m.CopyDuration.WithLabelValues(field).Observe(elapsed.Seconds())
}

// ObserveFailure records a failed run under the kind of err. nil is ignored.
func (m *Metrics) ObserveFailure(err error) {
	if err == nil {
		return
	}
	m.Failures.WithLabelValues(g_error.Kind(err)).Inc()
}

// WriteTextfile writes every metric to fileName in the Prometheus text
// exposition format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(fileName string) error {
	if err := prometheus.WriteToTextfile(fileName, m.Registry); err != nil {
		return fmt.Errorf("could not write metrics to %s: %w", fileName, err)
	}
	return nil
}
