package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

// StatsUpdater exposes runtime counters over expvar at /debug/vars. Updates
// are funneled through a channel so counter writes never contend.
type StatsUpdater struct {
	vars       *expvar.Map
	updateChan chan *metricUpdate
}

type metricUpdate struct {
	name  string
	delta int
}

func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		updateChan: make(chan *metricUpdate, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = expvar.NewMap("campus-chat-stats")

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	return su
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		data[kv.Key] = value
	})

	json.NewEncoder(w).Encode(data)
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, expvar.NewInt(name))
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- &metricUpdate{name: name, delta: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- &metricUpdate{name: name, delta: -1}
}

func (su *StatsUpdater) Run() {
	go func() {
		for req := range su.updateChan {
			metric := su.vars.Get(req.name)
			if metric == nil {
				panic("metric not found: " + req.name)
			}

			metric.(*expvar.Int).Add(int64(req.delta))
		}
	}()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}
