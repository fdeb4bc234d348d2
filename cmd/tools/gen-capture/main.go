// Command gen-capture writes a synthetic car-following drive as a pcap of
// input envelopes, for use with radard -replay.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"time"

	"github.com/banshee-data/leadfusion/internal/bus"
	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/ingest"
)

// scenario is a lead car ahead of the ego vehicle, both on a straight road.
type scenario struct {
	vEgo     float64
	vLead    float64
	gap      float64
	duration time.Duration
}

const (
	modelPeriod = 50 * time.Millisecond
	carPeriod   = 10 * time.Millisecond
	// Vision distances are measured from the camera.
	radarToCamera = 1.52
	pathSamples   = 33
)

type message struct {
	at       time.Duration
	topic    bus.Topic
	payload  any
	monoTime int64
}

// messages renders the scenario in send order.
func (s scenario) messages() []message {
	path := fusion.PathXY{X: make([]float64, pathSamples), Y: make([]float64, pathSamples)}
	for i := range path.X {
		path.X[i] = float64(i) * 6
	}

	var out []message
	for at := time.Duration(0); at < s.duration; at += carPeriod {
		mono := int64(at)
		out = append(out, message{at, bus.TopicCarState, fusion.CarState{VEgo: s.vEgo}, mono})
		if at%modelPeriod != 0 {
			continue
		}

		gap := s.gap + (s.vLead-s.vEgo)*at.Seconds()
		if gap < 2 {
			gap = 2
		}
		out = append(out, message{at, bus.TopicLiveTracks, fusion.RadarScan{Points: []fusion.RadarPoint{{
			TrackID: 1, DRel: gap, VRel: s.vLead - s.vEgo, VLead: s.vLead, Measured: true,
		}}}, mono})
		out = append(out, message{at, bus.TopicModel, fusion.ModelOutput{
			Leads: []fusion.LeadPrediction{
				{
					X: []float64{gap + radarToCamera}, Y: []float64{0}, V: []float64{s.vLead}, A: []float64{0},
					XStd: []float64{1}, YStd: []float64{0.5}, VStd: []float64{0.5}, Prob: 0.95,
				},
				{
					X: []float64{gap + radarToCamera + 20}, Y: []float64{0}, V: []float64{s.vLead}, A: []float64{0},
					XStd: []float64{3}, YStd: []float64{1}, VStd: []float64{1}, Prob: 0.2,
				},
			},
			Position:  path,
			VelocityX: []float64{s.vEgo},
		}, mono})
	}
	return out
}

func main() {
	output := flag.String("o", "drive.pcap", "output path")
	port := flag.Int("port", 8700, "UDP destination port")
	seconds := flag.Float64("seconds", 30, "drive length in seconds")
	vEgo := flag.Float64("v-ego", 20, "ego speed in m/s")
	vLead := flag.Float64("v-lead", 18, "lead speed in m/s")
	gap := flag.Float64("gap", 40, "initial distance to the lead in m")
	flag.Parse()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *output, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	cw, err := ingest.NewCaptureWriter(bw, *port)
	if err != nil {
		log.Fatal(err)
	}

	s := scenario{vEgo: *vEgo, vLead: *vLead, gap: *gap, duration: time.Duration(*seconds * float64(time.Second))}
	start := time.Now()
	msgs := s.messages()
	for _, m := range msgs {
		b, err := ingest.EncodeEnvelope(m.topic, m.monoTime, true, m.payload)
		if err != nil {
			log.Fatal(err)
		}
		if err := cw.Write(start.Add(m.at), b); err != nil {
			log.Fatal(err)
		}
	}
	if err := bw.Flush(); err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}
	log.Printf("wrote %d messages to %s", len(msgs), *output)
}
