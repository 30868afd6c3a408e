package gnss

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
)

const (
	// uere is the user equivalent range error in meters used to turn HDOP
	// into an accuracy radius.
	uere = 5.0

	// maxLinesPerRead bounds how many sentences one read scans for an
	// RMC+GGA pair.
	maxLinesPerRead = 20

	providerGPS = "gps"
)

// nmeaState accumulates the latest RMC and GGA sentences into a fix.
type nmeaState struct {
	valid      bool
	lat, lon   float64
	speed      float64 // km/h
	heading    float64
	altitude   float64
	satellites int
	hdop       float64
	timestamp  time.Time
}

// feed parses one sentence. It returns the sentence type ("RMC", "GGA") or
// "" when the line was ignored.
func (s *nmeaState) feed(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") || !validateNMEAChecksum(line) {
		return ""
	}
	parts := splitNMEA(line)
	if len(parts[0]) != 5 {
		return ""
	}
	// Talker ID (GP, GN, GL...) is ignored.
	switch parts[0][2:] {
	case "RMC":
		if s.parseRMC(parts) {
			return "RMC"
		}
	case "GGA":
		if s.parseGGA(parts) {
			return "GGA"
		}
	}
	return ""
}

func (s *nmeaState) parseRMC(parts []string) bool {
	// RMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,x.x,a
	if len(parts) < 10 {
		return false
	}

	s.valid = parts[2] == "A"
	if !s.valid {
		return true
	}
	s.lat = parseNMEACoord(parts[3], parts[4])
	s.lon = parseNMEACoord(parts[5], parts[6])
	if spd, err := strconv.ParseFloat(parts[7], 64); err == nil {
		s.speed = spd * 1.852 // knots to km/h
	}
	if hdg, err := strconv.ParseFloat(parts[8], 64); err == nil {
		s.heading = hdg
	}
	if ts, err := time.Parse("020106150405", parts[9]+parts[1]); err == nil {
		s.timestamp = ts
	}
	return true
}

func (s *nmeaState) parseGGA(parts []string) bool {
	// GGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx
	if len(parts) < 10 {
		return false
	}

	if sats, err := strconv.Atoi(parts[7]); err == nil {
		s.satellites = sats
	}
	if hdop, err := strconv.ParseFloat(parts[8], 64); err == nil {
		s.hdop = hdop
	}
	if alt, err := strconv.ParseFloat(parts[9], 64); err == nil {
		s.altitude = alt
	}
	return true
}

// fix returns the accumulated fix, or nil without a valid RMC.
func (s *nmeaState) fix() *domain.Fix {
	if !s.valid {
		return nil
	}
	return &domain.Fix{
		Latitude:   s.lat,
		Longitude:  s.lon,
		Timestamp:  s.timestamp,
		Accuracy:   s.hdop * uere,
		Provider:   providerGPS,
		Altitude:   s.altitude,
		Speed:      s.speed,
		Heading:    s.heading,
		Satellites: s.satellites,
	}
}

// sentenceReader reads NMEA lines from a stream until a complete update.
// A pair split by a read error or a rewind is completed by the next call.
type sentenceReader struct {
	scanner        *bufio.Scanner
	state          nmeaState
	gotRMC, gotGGA bool
}

func newSentenceReader(r io.Reader) *sentenceReader {
	return &sentenceReader{scanner: bufio.NewScanner(r)}
}

// next scans up to maxLinesPerRead lines looking for an RMC+GGA pair and
// returns the latest fix. io.EOF is returned when the stream ended before
// any line was read.
func (r *sentenceReader) next() (*domain.Fix, error) {
	lines := 0
	for ; lines < maxLinesPerRead && !(r.gotRMC && r.gotGGA); lines++ {
		if !r.scanner.Scan() {
			break
		}
		switch r.state.feed(r.scanner.Text()) {
		case "RMC":
			r.gotRMC = true
		case "GGA":
			r.gotGGA = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return r.state.fix(), err
	}
	if lines == 0 && !(r.gotRMC && r.gotGGA) {
		return r.state.fix(), io.EOF
	}
	if r.gotRMC && r.gotGGA {
		r.gotRMC, r.gotGGA = false, false
	}
	return r.state.fix(), nil
}

// splitNMEA strips the leading $ and the checksum suffix, then splits fields.
func splitNMEA(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "$")
	return strings.Split(line, ",")
}

// parseNMEACoord converts NMEA ddmm.mmmm format to decimal degrees.
func parseNMEACoord(raw, dir string) float64 {
	if raw == "" || dir == "" {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(val / 100)
	minutes := val - deg*100
	result := deg + minutes/60

	if dir == "S" || dir == "W" {
		result = -result
	}
	return result
}

// validateNMEAChecksum checks the XOR checksum after *.
func validateNMEAChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 0 || idx+3 > len(line) {
		return false
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return byte(expected) == nmeaChecksum(line[1:idx])
}

func nmeaChecksum(body string) byte {
	var calc byte
	for i := 0; i < len(body); i++ {
		calc ^= body[i]
	}
	return calc
}

// FormatSentence wraps body (without $ and checksum) into a full sentence.
func FormatSentence(body string) string {
	return fmt.Sprintf("$%s*%02X", body, nmeaChecksum(body))
}

// FormatLat renders decimal degrees as the NMEA ddmm.mmmm field and hemisphere.
func FormatLat(deg float64) (string, string) {
	hemi := "N"
	if deg < 0 {
		deg, hemi = -deg, "S"
	}
	whole := math.Floor(deg)
	return fmt.Sprintf("%02d%07.4f", int(whole), (deg-whole)*60), hemi
}

// FormatLon renders decimal degrees as the NMEA dddmm.mmmm field and hemisphere.
func FormatLon(deg float64) (string, string) {
	hemi := "E"
	if deg < 0 {
		deg, hemi = -deg, "W"
	}
	whole := math.Floor(deg)
	return fmt.Sprintf("%03d%07.4f", int(whole), (deg-whole)*60), hemi
}
