package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	autosaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reme",
			Subsystem: "editor",
			Name:      "autosave_total",
			Help:      "编辑会话自动保存次数。",
		},
		[]string{"result"},
	)

	editorSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reme",
			Subsystem: "editor",
			Name:      "sessions_active",
			Help:      "当前活跃的编辑会话数量。",
		},
	)
)

// RecordAutosave 记录一次自动保存的结果。
func RecordAutosave(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	autosaveTotal.WithLabelValues(result).Inc()
}

// EditorSessionStarted 编辑会话建立时调用。
func EditorSessionStarted() {
	editorSessions.Inc()
}

// EditorSessionEnded 编辑会话结束时调用。
func EditorSessionEnded() {
	editorSessions.Dec()
}
