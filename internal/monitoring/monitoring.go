// Package monitoring exports training progress as Prometheus gauges.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ChizhovVadim/piven/internal/report"
	"github.com/ChizhovVadim/piven/internal/trainer"
)

// TrainingMetrics records the latest epoch of one run. It implements
// trainer.IEpochObserver.
type TrainingMetrics struct {
	run          string
	registry     *prometheus.Registry
	epoch        *prometheus.GaugeVec
	loss         *prometheus.GaugeVec
	coverage     *prometheus.GaugeVec
	width        *prometheus.GaugeVec
	epochSeconds *prometheus.GaugeVec
	evaluation   *prometheus.GaugeVec
}

func NewTrainingMetrics(run string) *TrainingMetrics {
	var labels = []string{"run"}
	var m = &TrainingMetrics{
		run:      run,
		registry: prometheus.NewRegistry(),
		epoch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "piven_epoch",
			Help: "Last finished training epoch",
		}, labels),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "piven_loss",
			Help: "Loss of the last finished epoch by dataset split",
		}, []string{"run", "split"}),
		coverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "piven_validation_coverage",
			Help: "Fraction of validation targets inside the predicted interval",
		}, labels),
		width: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "piven_validation_pi_width",
			Help: "Mean predicted interval width on the validation set",
		}, labels),
		epochSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "piven_epoch_duration_seconds",
			Help: "Wall time of the last finished epoch",
		}, labels),
		evaluation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "piven_evaluation",
			Help: "Final evaluation metrics of the run",
		}, []string{"run", "metric"}),
	}
	m.registry.MustRegister(m.epoch, m.loss, m.coverage, m.width, m.epochSeconds, m.evaluation)
	return m
}

func (m *TrainingMetrics) ObserveEpoch(stats trainer.EpochStats) {
	m.epoch.WithLabelValues(m.run).Set(float64(stats.Epoch))
	m.loss.WithLabelValues(m.run, "train").Set(stats.TrainLoss)
	m.loss.WithLabelValues(m.run, "validation").Set(stats.ValidationLoss)
	m.coverage.WithLabelValues(m.run).Set(stats.Coverage)
	m.width.WithLabelValues(m.run).Set(stats.Width)
	m.epochSeconds.WithLabelValues(m.run).Set(stats.Duration.Seconds())
}

func (m *TrainingMetrics) ObserveEvaluation(metrics report.Metrics) {
	m.evaluation.WithLabelValues(m.run, "loss").Set(metrics.Loss)
	m.evaluation.WithLabelValues(m.run, "mae").Set(metrics.MAE)
	m.evaluation.WithLabelValues(m.run, "rmse").Set(metrics.RMSE)
	m.evaluation.WithLabelValues(m.run, "coverage").Set(metrics.Coverage)
	m.evaluation.WithLabelValues(m.run, "pi_width").Set(metrics.PIWidth)
}

// WriteTextfile writes all gauges in the node exporter text-file format.
func (m *TrainingMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
