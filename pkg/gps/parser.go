package gps

import (
	nmea "github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
)

// NMEA 0183 caps sentences at 82 characters; anything much longer is line noise.
const maxSentenceLength = 120

// Parser assembles NMEA sentences one character at a time and folds each
// decoded sentence into a running Fix.
type Parser struct {
	buf        []byte
	collecting bool
	fix        Fix
	logger     zerolog.Logger
}

// NewParser returns an empty parser.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{
		buf:    make([]byte, 0, maxSentenceLength),
		logger: logger,
	}
}

// Update consumes one character. When the character terminates a sentence
// that decodes successfully, Update returns its talker+type code (for example
// "GPGGA") and true.
func (p *Parser) Update(c byte) (string, bool) {
	switch {
	case c == '$' || c == '!':
		p.buf = append(p.buf[:0], c)
		p.collecting = true
		return "", false

	case !p.collecting:
		return "", false

	case c == '\r' || c == '\n':
		p.collecting = false
		return p.decode(string(p.buf))

	default:
		if len(p.buf) >= maxSentenceLength {
			p.collecting = false
			return "", false
		}
		p.buf = append(p.buf, c)
		return "", false
	}
}

// Abort drops a partially collected sentence.
func (p *Parser) Abort() {
	p.buf = p.buf[:0]
	p.collecting = false
}

// Fix returns the live fix state.
func (p *Parser) Fix() *Fix {
	return &p.fix
}

func (p *Parser) decode(raw string) (string, bool) {
	sentence, err := nmea.Parse(raw)
	if err != nil {
		p.logger.Debug().Err(err).Str("sentence", raw).Msg("Discarding NMEA sentence")
		return "", false
	}

	p.apply(sentence)
	return sentence.Prefix(), true
}

func (p *Parser) apply(sentence nmea.Sentence) {
	switch m := sentence.(type) {
	case nmea.GGA:
		p.setTime(m.Time)
		if m.FixQuality != nmea.Invalid {
			p.fix.Latitude = ptr(m.Latitude)
			p.fix.Longitude = ptr(m.Longitude)
			p.fix.Altitude = ptr(m.Altitude)
			p.fix.SatellitesInUse = ptr(int(m.NumSatellites))
			p.fix.HDOP = ptr(m.HDOP)
		}

	case nmea.RMC:
		p.setTime(m.Time)
		if m.Date.Valid {
			p.fix.Date = m.Date
		}
		if m.Validity == nmea.ValidRMC {
			p.fix.Latitude = ptr(m.Latitude)
			p.fix.Longitude = ptr(m.Longitude)
			p.fix.SpeedKnots = ptr(m.Speed)
			p.fix.Course = ptr(m.Course)
		}

	case nmea.GLL:
		p.setTime(m.Time)
		if m.Validity == nmea.ValidGLL {
			p.fix.Latitude = ptr(m.Latitude)
			p.fix.Longitude = ptr(m.Longitude)
		}

	case nmea.VTG:
		// Empty fields decode as zero; only trust populated ones.
		if fieldSet(m.Fields, 0) {
			p.fix.Course = ptr(m.TrueTrack)
		}
		if fieldSet(m.Fields, 4) {
			p.fix.SpeedKnots = ptr(m.GroundSpeedKnots)
		} else if fieldSet(m.Fields, 6) {
			p.fix.SpeedKnots = ptr(m.GroundSpeedKPH / knotsToKPH)
		}

	case nmea.GSA:
		p.fix.FixType = m.FixType
		used := 0
		for _, sv := range m.SV {
			if sv != "" {
				used++
			}
		}
		if m.FixType != nmea.FixNone {
			p.fix.SatellitesInUse = ptr(used)
			p.fix.HDOP = ptr(m.HDOP)
		}
	}
}

func (p *Parser) setTime(t nmea.Time) {
	if t.Valid {
		p.fix.Time = t
	}
}

func fieldSet(fields []string, i int) bool {
	return i < len(fields) && fields[i] != ""
}
