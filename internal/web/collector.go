package web

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the pipeline counters as Prometheus metrics. Every
// scrape reads a fresh snapshot.
type Collector struct {
	stats StatsSource

	receptionImages  *prometheus.Desc
	receptionBytes   *prometheus.Desc
	processedImages  *prometheus.Desc
	processingErrors *prometheus.Desc
	processingAvgMS  *prometheus.Desc
	filterDropped    *prometheus.Desc
	archiveStudies   *prometheus.Desc
	archiveImages    *prometheus.Desc
	archiveErrors    *prometheus.Desc
	remoteStudies    *prometheus.Desc
	remoteImages     *prometheus.Desc
	remoteBytes      *prometheus.Desc
	remoteErrors     *prometheus.Desc
	activeStudies    *prometheus.Desc
	completedStudies *prometheus.Desc
	errorsTotal      *prometheus.Desc
}

// NewCollector builds the descriptor set for the pipeline counters.
func NewCollector(stats StatsSource) *Collector {
	return &Collector{
		stats: stats,
		receptionImages: prometheus.NewDesc("pixieveil_reception_images_total",
			"Images handed over by the DICOM adapter.", nil, nil),
		receptionBytes: prometheus.NewDesc("pixieveil_reception_bytes_total",
			"Bytes handed over by the DICOM adapter.", nil, nil),
		processedImages: prometheus.NewDesc("pixieveil_processed_images_total",
			"Images anonymised and placed into the layout.", nil, nil),
		processingErrors: prometheus.NewDesc("pixieveil_processing_errors_total",
			"Images rejected by the pipeline, by stage.", []string{"stage"}, nil),
		processingAvgMS: prometheus.NewDesc("pixieveil_processing_avg_milliseconds",
			"Average per-image processing time.", nil, nil),
		filterDropped: prometheus.NewDesc("pixieveil_filter_dropped_total",
			"Images dropped by the series filter.", nil, nil),
		archiveStudies: prometheus.NewDesc("pixieveil_archive_studies_total",
			"Study completion attempts.", nil, nil),
		archiveImages: prometheus.NewDesc("pixieveil_archive_images_total",
			"Images covered by completion attempts.", nil, nil),
		archiveErrors: prometheus.NewDesc("pixieveil_archive_errors_total",
			"Failed archive or upload attempts.", nil, nil),
		remoteStudies: prometheus.NewDesc("pixieveil_remote_studies_total",
			"Studies uploaded to the remote store.", nil, nil),
		remoteImages: prometheus.NewDesc("pixieveil_remote_images_total",
			"Images uploaded to the remote store.", nil, nil),
		remoteBytes: prometheus.NewDesc("pixieveil_remote_bytes_total",
			"Archive bytes uploaded to the remote store.", nil, nil),
		remoteErrors: prometheus.NewDesc("pixieveil_remote_errors_total",
			"Failed uploads.", nil, nil),
		activeStudies: prometheus.NewDesc("pixieveil_active_studies",
			"Studies currently receiving or awaiting completion.", nil, nil),
		completedStudies: prometheus.NewDesc("pixieveil_completed_studies_total",
			"Studies that finished the completion sequence.", nil, nil),
		errorsTotal: prometheus.NewDesc("pixieveil_errors_total",
			"Errors counted anywhere in the pipeline.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.receptionImages
	ch <- c.receptionBytes
	ch <- c.processedImages
	ch <- c.processingErrors
	ch <- c.processingAvgMS
	ch <- c.filterDropped
	ch <- c.archiveStudies
	ch <- c.archiveImages
	ch <- c.archiveErrors
	ch <- c.remoteStudies
	ch <- c.remoteImages
	ch <- c.remoteBytes
	ch <- c.remoteErrors
	ch <- c.activeStudies
	ch <- c.completedStudies
	ch <- c.errorsTotal
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Counters()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.receptionImages, s.Reception.Images)
	counter(c.receptionBytes, s.Reception.Bytes)
	counter(c.processedImages, s.Processing.Images)
	counter(c.processingErrors, s.Processing.Errors.Validation, "validation")
	counter(c.processingErrors, s.Processing.Errors.Anonymization, "anonymization")
	counter(c.processingErrors, s.Processing.Errors.Storage, "storage")
	counter(c.filterDropped, s.Filter.Dropped)
	counter(c.archiveStudies, s.Archive.Studies)
	counter(c.archiveImages, s.Archive.Images)
	counter(c.archiveErrors, s.Archive.Errors)
	counter(c.remoteStudies, s.RemoteStorage.Studies)
	counter(c.remoteImages, s.RemoteStorage.Images)
	counter(c.remoteBytes, s.RemoteStorage.Bytes)
	counter(c.remoteErrors, s.RemoteStorage.Errors)
	counter(c.completedStudies, s.Studies.Completed)
	counter(c.errorsTotal, s.Errors.Total)

	ch <- prometheus.MustNewConstMetric(c.activeStudies, prometheus.GaugeValue, float64(s.Studies.Active))
	ch <- prometheus.MustNewConstMetric(c.processingAvgMS, prometheus.GaugeValue, s.Processing.AvgMS)
}
