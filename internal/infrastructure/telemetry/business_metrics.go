package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BusinessMetrics counts domain events. A nil *BusinessMetrics is valid
// and records nothing, so services work without metrics wired.
//
// Tenant IDs are never labels; the tenant count is unbounded.
type BusinessMetrics struct {
	templatesApplied   prometheus.Counter
	flowGraphsSaved    *prometheus.CounterVec
	flowGraphNodes     prometheus.Histogram
	settingsCreated    prometheus.Counter
	settingsUpdated    prometheus.Counter
	locationCycles     prometheus.Counter
	attachmentsPresign *prometheus.CounterVec
	tenantsProvisioned *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers the business counters
func NewBusinessMetrics(reg prometheus.Registerer) (*BusinessMetrics, error) {
	bm := &BusinessMetrics{
		templatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ticket_templates_applied_total",
			Help:      "Ticket templates applied to new tickets",
		}),
		flowGraphsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chatbot_flow_graph_saves_total",
			Help:      "Chatbot flow graph replacements by outcome",
		}, []string{"outcome"}),
		flowGraphNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "chatbot_flow_graph_nodes",
			Help:      "Node count of saved chatbot flow graphs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		settingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "omnibridge_settings_lazy_created_total",
			Help:      "Default OmniBridge settings rows created on first access",
		}),
		settingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "omnibridge_settings_updates_total",
			Help:      "OmniBridge settings updates",
		}),
		locationCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "location_parent_cycles_rejected_total",
			Help:      "Location parent assignments rejected because they would form a cycle",
		}),
		attachmentsPresign: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "location_attachment_presigns_total",
			Help:      "Presigned attachment URLs issued by direction",
		}, []string{"direction"}),
		tenantsProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tenants_provisioned_total",
			Help:      "Tenant provisioning attempts by outcome",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		bm.templatesApplied, bm.flowGraphsSaved, bm.flowGraphNodes, bm.settingsCreated,
		bm.settingsUpdated, bm.locationCycles, bm.attachmentsPresign, bm.tenantsProvisioned,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return bm, nil
}

// RecordTemplateApplied counts one template application
func (bm *BusinessMetrics) RecordTemplateApplied() {
	if bm == nil {
		return
	}
	bm.templatesApplied.Inc()
}

// RecordFlowGraphSaved counts a graph replacement and its size
func (bm *BusinessMetrics) RecordFlowGraphSaved(nodes int, err error) {
	if bm == nil {
		return
	}
	if err != nil {
		bm.flowGraphsSaved.WithLabelValues("error").Inc()
		return
	}
	bm.flowGraphsSaved.WithLabelValues("ok").Inc()
	bm.flowGraphNodes.Observe(float64(nodes))
}

// RecordSettingsCreated counts a lazily created settings row
func (bm *BusinessMetrics) RecordSettingsCreated() {
	if bm == nil {
		return
	}
	bm.settingsCreated.Inc()
}

// RecordSettingsUpdated counts a settings update
func (bm *BusinessMetrics) RecordSettingsUpdated() {
	if bm == nil {
		return
	}
	bm.settingsUpdated.Inc()
}

// RecordLocationCycleRejected counts a rejected parent assignment
func (bm *BusinessMetrics) RecordLocationCycleRejected() {
	if bm == nil {
		return
	}
	bm.locationCycles.Inc()
}

// RecordAttachmentPresigned counts an issued URL; direction is upload or download
func (bm *BusinessMetrics) RecordAttachmentPresigned(direction string) {
	if bm == nil {
		return
	}
	bm.attachmentsPresign.WithLabelValues(direction).Inc()
}

// RecordTenantProvisioned counts a provisioning attempt
func (bm *BusinessMetrics) RecordTenantProvisioned(err error) {
	if bm == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	bm.tenantsProvisioned.WithLabelValues(outcome).Inc()
}
