package utim

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Stat struct {
	Uptime         prometheus.Counter
	FramesReceived prometheus.Counter
	FramesSent     prometheus.Counter
	UhostReceived  prometheus.Counter
	UhostSent      prometheus.Counter
	ItemsProcessed prometheus.Counter
	Republishes    prometheus.Counter
	AcksReceived   prometheus.Counter
	PendingAcks    prometheus.Gauge
}

var stat = Stat{
	Uptime:         prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_uptime_seconds", Help: "The uptime in seconds"}),
	FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_datalink_received_frames", Help: "The total number of frames read from the datalink"}),
	FramesSent:     prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_datalink_sent_frames", Help: "The total number of frames written to the datalink"}),
	UhostReceived:  prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_uhost_received_messages", Help: "The total number of messages received from Uhost"}),
	UhostSent:      prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_uhost_sent_messages", Help: "The total number of messages sent to Uhost"}),
	ItemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_processed_items", Help: "The total number of items run through the processor"}),
	Republishes:    prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_republished_messages", Help: "The total number of republished Uhost messages"}),
	AcksReceived:   prometheus.NewCounter(prometheus.CounterOpts{Name: "utim_received_acks", Help: "The total number of delivery acks received"}),
	PendingAcks:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "utim_pending_acks", Help: "The number of published messages awaiting an ack"}),
}

func (s *Stat) Register() {
	prometheus.MustRegister(s.Uptime)
	prometheus.MustRegister(s.FramesReceived)
	prometheus.MustRegister(s.FramesSent)
	prometheus.MustRegister(s.UhostReceived)
	prometheus.MustRegister(s.UhostSent)
	prometheus.MustRegister(s.ItemsProcessed)
	prometheus.MustRegister(s.Republishes)
	prometheus.MustRegister(s.AcksReceived)
	prometheus.MustRegister(s.PendingAcks)
}

func (s *Stat) RefreshUptime() {
	go func() {
		tick := time.NewTicker(time.Second)
		for range tick.C {
			s.Uptime.Inc()
		}
	}()
}

// Httpd serves /metrics and pprof on the configured HTTP listen address.
func Httpd(url string) error {
	stat.Register()
	stat.RefreshUptime()
	mux := requests.NewServeMux(requests.URL(url))
	mux.Route("/metrics", promhttp.Handler())
	mux.Pprof()
	s := requests.NewServer(context.Background(), mux, requests.OnStart(func(s *http.Server) {
		log.Printf("http serve: %s", s.Addr)
	}))
	return s.ListenAndServe()
}
