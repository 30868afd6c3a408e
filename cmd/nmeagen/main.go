// Command nmeagen writes a synthetic NMEA 0183 track (RMC+GGA pairs) for the
// replay receiver. The track circles a centre point at walking pace.
//
// Usage:
//
//	go run ./cmd/nmeagen \
//	  -out data/track.nmea \
//	  -lat 37.4219 -lon -122.0840 \
//	  -points 360 -interval 1s
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/adapter/gnss"
	"github.com/jonboulle/clockwork"
)

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_320.0

type track struct {
	lat, lon float64
	radiusM  float64
	points   int
	interval time.Duration
	hdop     float64
	sats     int
	altitude float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the NMEA track")
	lat := flag.Float64("lat", gnss.DemoLatitude, "centre latitude")
	lon := flag.Float64("lon", gnss.DemoLongitude, "centre longitude")
	radius := flag.Float64("radius", 150, "circle radius in meters")
	points := flag.Int("points", 360, "number of fixes")
	interval := flag.Duration("interval", time.Second, "time between fixes")
	start := flag.String("start", "2024-05-01T12:00:00Z", "timestamp of the first fix (RFC 3339)")
	flag.Parse()

	if *out == "" || *points < 1 || *interval <= 0 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -points, -interval")
	}
	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	t := track{lat: *lat, lon: *lon, radiusM: *radius, points: *points, interval: *interval, hdop: 0.9, sats: 9, altitude: 32}
	if err := t.write(f, clockwork.NewFakeClockAt(startAt.UTC())); err != nil {
		return fmt.Errorf("write track: %w", err)
	}
	log.Printf("wrote %d fixes to %s", *points, *out)
	return nil
}

// write emits one RMC+GGA pair per point, advancing clock by the interval.
func (t track) write(w io.Writer, clock *clockwork.FakeClock) error {
	bw := bufio.NewWriter(w)
	speedKnots := 2 * math.Pi * t.radiusM / (float64(t.points) * t.interval.Seconds()) * 1.943844

	for i := range t.points {
		angle := 2 * math.Pi * float64(i) / float64(t.points)
		dLat := t.radiusM * math.Sin(angle) / metersPerDegree
		dLon := t.radiusM * math.Cos(angle) / (metersPerDegree * math.Cos(t.lat*math.Pi/180))
		latField, ns := gnss.FormatLat(t.lat + dLat)
		lonField, ew := gnss.FormatLon(t.lon + dLon)

		now := clock.Now()
		hms := now.Format("150405.00")
		heading := math.Mod(360-angle*180/math.Pi, 360)

		rmc := fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,",
			hms, latField, ns, lonField, ew, speedKnots, heading, now.Format("020106"))
		gga := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,%.1f,%.1f,M,-25.0,M,,",
			hms, latField, ns, lonField, ew, t.sats, t.hdop, t.altitude)

		if _, err := fmt.Fprintf(bw, "%s\r\n%s\r\n", gnss.FormatSentence(rmc), gnss.FormatSentence(gga)); err != nil {
			return err
		}
		clock.Advance(t.interval)
	}
	return bw.Flush()
}
