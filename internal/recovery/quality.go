package recovery

import "github.com/voxroom/signaling/internal/domain"

// Grade thresholds. A sample is good when every metric sits at or below
// its good bound, poor when any metric crosses its poor bound, fair
// otherwise. Bandwidth never changes the grade, it only drives advice.
const (
	goodLatencyMS   = 100
	goodLossPercent = 1
	goodJitterMS    = 20

	poorLatencyMS   = 250
	poorLossPercent = 5
	poorJitterMS    = 50

	lowBandwidthKbps = 500
)

type QualityReport struct {
	Quality         domain.QualityGrade `json:"quality"`
	Recommendations []string            `json:"recommendations"`
}

// Classify turns a metrics sample into a grade plus advisory text. Pure
// function, no side effects; the caller persists the grade if it wants to.
func Classify(m domain.QualityMetrics) QualityReport {
	report := QualityReport{Quality: domain.QualityFair}

	switch {
	case m.LatencyMS > poorLatencyMS || m.PacketLossPercent > poorLossPercent || m.JitterMS > poorJitterMS:
		report.Quality = domain.QualityPoor
	case m.LatencyMS <= goodLatencyMS && m.PacketLossPercent <= goodLossPercent && m.JitterMS <= goodJitterMS:
		report.Quality = domain.QualityGood
	}

	if m.LatencyMS > goodLatencyMS {
		report.Recommendations = append(report.Recommendations,
			"High latency: move closer to your router or switch to a faster network.")
	}
	if m.PacketLossPercent > goodLossPercent {
		report.Recommendations = append(report.Recommendations,
			"Packet loss detected: check for network congestion or interference.")
	}
	if m.JitterMS > goodJitterMS {
		report.Recommendations = append(report.Recommendations,
			"Unstable connection: a wired connection gives steadier audio than wifi.")
	}
	if m.BandwidthKbps > 0 && m.BandwidthKbps < lowBandwidthKbps {
		report.Recommendations = append(report.Recommendations,
			"Low bandwidth: close other apps that use the network.")
	}
	return report
}
