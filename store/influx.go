package store

import (
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/larsks/qthrss/data"
)

// InfluxConfig represents an influxdb config
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Influx represents an influxdb that we can write fetch stats to
type Influx struct {
	config   InfluxConfig
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInflux creates an influx helper client
func NewInflux(config *InfluxConfig) *Influx {
	client := influxdb2.NewClient(config.URL, config.Token)

	return &Influx{
		config:   *config,
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
	}
}

// WriteFetchStat writes one fetch observation to influxdb. Writes are
// batched by the client and errors surface on the client's error channel.
func (i *Influx) WriteFetchStat(instance string, s data.FetchStat) {
	p := influxdb2.NewPoint("fetch",
		map[string]string{
			"instance": instance,
			"hit":      strconv.FormatBool(s.Hit),
			"status":   strconv.Itoa(s.Status),
		},
		map[string]interface{}{
			"url":         s.URL,
			"bytes":       s.Bytes,
			"duration_ms": float64(s.Duration.Microseconds()) / 1000.0,
		},
		s.Time)
	i.writeAPI.WritePoint(p)
}

// Close influx client
func (i *Influx) Close() {
	i.writeAPI.Flush()
	i.client.Close()
}
