package subscriber

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

const (
	resultAccepted  = "accepted"
	resultRejected  = "rejected"
	resultError     = "error"
	resultForbidden = "forbidden"
	resultGone      = "gone"
	resultMalformed = "malformed"
)

type metrics struct {
	deliveries  *prometheus.CounterVec
	hubRequests *prometheus.CounterVec
	live        prometheus.GaugeFunc
}

func newMetrics(st storage.Storage) *metrics {
	return &metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubrelay",
			Name:      "deliveries_total",
			Help:      "Content deliveries received from the hub, by outcome.",
		}, []string{"result"}),
		hubRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubrelay",
			Name:      "hub_requests_total",
			Help:      "Subscribe and unsubscribe requests sent to the hub, by outcome.",
		}, []string{"mode", "result"}),
		live: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hubrelay",
			Name:      "subscriptions",
			Help:      "Live subscriptions in the registry.",
		}, func() float64 {
			n, err := st.Len(context.Background())
			if err != nil {
				return 0
			}
			return float64(n)
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.deliveries, m.hubRequests, m.live} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
