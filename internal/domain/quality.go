package domain

// QualityGrade is the coarse connection grade derived from client metrics.
type QualityGrade string

const (
	QualityUnknown QualityGrade = "unknown"
	QualityGood    QualityGrade = "good"
	QualityFair    QualityGrade = "fair"
	QualityPoor    QualityGrade = "poor"
)

// QualityMetrics is a single client-reported sample. Not persisted;
// only the derived grade is.
type QualityMetrics struct {
	LatencyMS         float64 `json:"latency_ms"`
	PacketLossPercent float64 `json:"packet_loss_percent"`
	JitterMS          float64 `json:"jitter_ms"`
	BandwidthKbps     float64 `json:"bandwidth_kbps"`
}
