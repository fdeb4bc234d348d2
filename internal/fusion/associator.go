package fusion

import "math"

// laplacianPDF is an unnormalised Laplace density. Deviations beyond 50 scale
// units count as zero.
func laplacianPDF(x, mu, b float64) float64 {
	diff := math.Abs(x-mu) / math.Max(b, 1e-4)
	if diff > 50.0 {
		return 0.0
	}
	return math.Exp(-diff)
}

// gatedOut is the likelihood of a candidate rejected by gating.
var gatedOut = math.Inf(-1)

// matchLikelihood scores a track against a vision lead whose distance has
// already been moved to the radar frame.
func matchLikelihood(t *Track, lead LeadPrediction, offsetDist float64) float64 {
	maxOffset := math.Max(offsetDist*0.35, 5.0)
	if math.Abs(t.DRel-offsetDist) > maxOffset {
		return gatedOut
	}
	velTolerance := 10.0
	if lead.Prob > 0.99 {
		velTolerance = 25.0
	}
	if !(math.Abs(t.VLead-lead.V0()) < velTolerance || t.VLead > 3) {
		return gatedOut
	}

	probD := laplacianPDF(t.DRel, offsetDist, lead.XStd0())
	probY := laplacianPDF(t.YRel, -lead.Y0(), lead.YStd0())
	probV := laplacianPDF(t.VLead, lead.V0(), lead.VStd0())
	weightV := trackSpeedWeight.at(t.VLead)

	return probD * probY * probV * weightV
}

// MatchVisionToTrack returns the track most likely to be the vision lead, or
// nil when every track fails gating. Tracks are visited in ascending id order
// and the first of equally likely tracks wins.
func MatchVisionToTrack(lead LeadPrediction, tracks *TrackStore, radarToCamera float64) *Track {
	offsetDist := lead.X0() - radarToCamera

	var best *Track
	bestProb := gatedOut
	tracks.Range(func(t *Track) bool {
		p := matchLikelihood(t, lead, offsetDist)
		if p > bestProb {
			best, bestProb = t, p
		}
		return true
	})
	return best
}
