// Command pcap-analyze summarises a capture of input envelopes: message
// counts, mono time span and rate per topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/banshee-data/leadfusion/internal/bus"
	"github.com/banshee-data/leadfusion/internal/ingest"
)

// TopicStats summarises one topic in a capture.
type TopicStats struct {
	Topic        bus.Topic `json:"topic"`
	Messages     int       `json:"messages"`
	Invalid      int       `json:"invalid"`
	FirstMono    int64     `json:"first_mono_time"`
	LastMono     int64     `json:"last_mono_time"`
	RateHz       float64   `json:"rate_hz"`
	NonMonotonic int       `json:"non_monotonic"`
}

// AnalysisResult holds the results of a capture analysis.
type AnalysisResult struct {
	PCAPFile string       `json:"pcap_file"`
	Packets  int64        `json:"packets"`
	Dropped  int64        `json:"dropped"`
	Topics   []TopicStats `json:"topics"`
}

type counter struct {
	topics map[bus.Topic]*TopicStats
}

func (c *counter) PublishJSON(topic bus.Topic, monoTime int64, valid bool, _ json.RawMessage) error {
	ts, ok := c.topics[topic]
	if !ok {
		ts = &TopicStats{Topic: topic, FirstMono: monoTime}
		c.topics[topic] = ts
	} else if monoTime < ts.LastMono {
		ts.NonMonotonic++
	}
	ts.Messages++
	if !valid {
		ts.Invalid++
	}
	ts.LastMono = monoTime
	return nil
}

func analyze(ctx context.Context, path string, r io.Reader, port int) (*AnalysisResult, error) {
	c := &counter{topics: make(map[bus.Topic]*TopicStats)}
	stats, err := ingest.ReplayReader(ctx, r, c, ingest.ReplayConfig{UDPPort: port})
	if err != nil {
		return nil, err
	}
	res := &AnalysisResult{PCAPFile: path, Packets: stats.Packets(), Dropped: stats.Dropped()}
	for _, ts := range c.topics {
		if span := time.Duration(ts.LastMono - ts.FirstMono); span > 0 && ts.Messages > 1 {
			ts.RateHz = float64(ts.Messages-1) / span.Seconds()
		}
		res.Topics = append(res.Topics, *ts)
	}
	sort.Slice(res.Topics, func(i, j int) bool { return res.Topics[i].Topic < res.Topics[j].Topic })
	return res, nil
}

func main() {
	port := flag.Int("port", 0, "only count datagrams sent to this UDP port (0 counts all)")
	asJSON := flag.Bool("json", false, "print the result as JSON")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: pcap-analyze [-port N] [-json] capture.pcap")
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open PCAP file %s: %v", path, err)
	}
	defer f.Close()

	res, err := analyze(context.Background(), path, f, *port)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal(err)
		}
		return
	}
	fmt.Printf("%s: %d packets, %d undecodable\n", res.PCAPFile, res.Packets, res.Dropped)
	for _, ts := range res.Topics {
		fmt.Printf("  %-12s %7d msgs  %6.1f Hz  invalid=%d non-monotonic=%d\n",
			ts.Topic, ts.Messages, ts.RateHz, ts.Invalid, ts.NonMonotonic)
	}
}
