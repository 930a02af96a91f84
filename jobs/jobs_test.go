package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/glowdesk/glowdesk/internal/analytics"
	"github.com/glowdesk/glowdesk/internal/freebies"
	jobmetrics "github.com/glowdesk/glowdesk/internal/jobs"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/repository"
)

func metricValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue next
				}
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

type recordingMailer struct {
	from string
	sent []SendEmailPayload
	err  error
}

func (m *recordingMailer) Send(_ context.Context, from string, msg SendEmailPayload) error {
	if m.err != nil {
		return m.err
	}
	m.from = from
	m.sent = append(m.sent, msg)
	return nil
}

func TestMailJobDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	job := &MailJob{Mailer: mailer, From: "shop@glowdesk.test"}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@glowdesk.test", Subject: "Hi", Body: "Hello"})
	require.NoError(t, err)
	require.Equal(t, TaskTypeSendEmail, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, "shop@glowdesk.test", mailer.from)
	require.Equal(t, "a@glowdesk.test", mailer.sent[0].To)
}

func TestMailJobRejectsMalformedPayload(t *testing.T) {
	job := &MailJob{Mailer: &recordingMailer{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = NewSendEmailTask(SendEmailPayload{Subject: "no recipient"})
	require.Error(t, err)
}

func TestMailJobRetriesDeliveryErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := &MailJob{Mailer: &recordingMailer{err: errors.New("smtp down")}, Metrics: metrics}
	task, err := NewSendEmailTask(SendEmailPayload{To: "a@glowdesk.test"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 1.0, metricValue(t, registry, "glowdesk_jobs_failures_total", map[string]string{"job": TaskTypeSendEmail}))
}

type stubReports struct {
	threshold, limit int
	dashboards       int
	report           analytics.InventoryReport
	err              error
}

func (s *stubReports) Inventory(_ context.Context, threshold, limit int) (analytics.InventoryReport, error) {
	s.threshold, s.limit = threshold, limit
	return s.report, s.err
}

func (s *stubReports) Dashboard(context.Context) (analytics.Dashboard, error) {
	s.dashboards++
	return analytics.Dashboard{}, nil
}

func TestLowStockScan(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	reports := &stubReports{report: analytics.InventoryReport{
		Threshold: 10,
		LowStockProducts: []products.Product{
			{Meta: repository.Meta{ID: "p1"}, Name: "Aloe Gel", Qty: 2},
			{Meta: repository.Meta{ID: "p2"}, Name: "Rose Soap", Qty: 0},
		},
		LowStockFreebies: []freebies.Freebie{{Meta: repository.Meta{ID: "f1"}, Name: "Sachet"}},
	}}
	job := NewLowStockScanJob(reports, nil, metrics)

	task, err := NewLowStockScanTask(LowStockScanPayload{Threshold: 3})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, 3, reports.threshold)
	require.Equal(t, 1, reports.dashboards)
	require.Equal(t, 2.0, metricValue(t, registry, "glowdesk_low_stock_items", map[string]string{"kind": "product"}))
	require.Equal(t, 1.0, metricValue(t, registry, "glowdesk_low_stock_items", map[string]string{"kind": "freebie"}))
	require.Equal(t, 1.0, metricValue(t, registry, "glowdesk_jobs_total", map[string]string{"job": TaskLowStockScan, "status": "success"}))
}

func TestLowStockScanPropagatesReportErrors(t *testing.T) {
	job := NewLowStockScanJob(&stubReports{err: errors.New("store offline")}, nil, nil)
	require.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, nil)))
}

type stubInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHealthEndpoint(t *testing.T) {
	for _, tc := range []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   map[string]int
	}{
		{name: "no inspector", inspector: nil, status: http.StatusOK, pending: map[string]int{QueueDefault: 0, QueueMail: 0}},
		{
			name:      "mail queue only",
			inspector: stubInspector{infos: map[string]*asynq.QueueInfo{QueueMail: {Queue: QueueMail, Pending: 4}}},
			status:    http.StatusOK,
			pending:   map[string]int{QueueDefault: 0, QueueMail: 4},
		},
		{name: "redis down", inspector: stubInspector{err: errors.New("dial tcp")}, status: http.StatusServiceUnavailable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Route("/jobs", NewHandler(tc.inspector, nil).MountRoutes)
			res := httptest.NewRecorder()
			r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
			require.Equal(t, tc.status, res.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body healthResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			require.Len(t, body.Queues, len(Queues))
			for _, q := range body.Queues {
				require.Equal(t, tc.pending[q.Queue], q.Pending, q.Queue)
			}
		})
	}
}

func TestTaskRouting(t *testing.T) {
	mail, err := NewSendEmailTask(SendEmailPayload{To: "a@glowdesk.test"})
	require.NoError(t, err)
	require.Equal(t, TaskTypeSendEmail, mail.Type())

	_, err = NewSendEmailTask(SendEmailPayload{})
	require.Error(t, err)

	scan, err := NewLowStockScanTask(LowStockScanPayload{Threshold: 3})
	require.NoError(t, err)
	var payload LowStockScanPayload
	require.NoError(t, json.Unmarshal(scan.Payload(), &payload))
	require.Equal(t, 3, payload.Threshold)

	require.Equal(t, []string{QueueDefault, QueueMail}, QueueNames())
}
