package telemetry

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/ancient-mariner/kharon/internal/config"
	"github.com/ancient-mariner/kharon/internal/gps"
)

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes combined GPS fixes as JSON to MQTT. cmd/kharon-router
// decodes the gps.Fix published on cfg.TopicGPS directly, so the
// field-by-field accumulation below exists to keep that struct fed
// with the latest value from whichever sentence last touched it.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	log.Printf("GPS producer connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	// Accumulate data from multiple NMEA sentence types.
	// Publish to separate topics for different data categories.
	var position gps.Position
	var velocity gps.Velocity
	var quality gps.Quality
	var satellites gps.SatellitesInView

	// fix is the combined struct cmd/kharon-router decodes off
	// cfg.TopicGPS (gps.Fix.Valid gates whether it uses the position).
	var fix gps.Fix
	lastPublishedFix := ""

	// GSV messages come in multiple parts per constellation - accumulate
	// GPS (talker "GP") and GLONASS (talker "GL") satellites separately
	// across messages, since a GPGSV sequence and a GLGSV sequence each
	// restart their own MessageNumber count.
	var gpsSatBuffer, glonassSatBuffer []gps.Satellite

	// Helper to publish to a topic
	publishJSON := func(topic string, data interface{}) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("JSON marshal error for %s: %v", topic, err)
			return
		}
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Publish error to %s: %v", topic, token.Error())
		}
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("GPS read error: %v", err)
			return err // or continue if you prefer to keep trying
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// NMEA sentences usually start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences; log at debug if too chatty
			// log.Printf("NMEA parse error: %v (line: %q)", err, line)
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			// RMC: Recommended Minimum - provides time, date, position, speed, course
			m := sentence.(nmea.RMC)

			// Update position
			position.Time = m.Time.String()
			position.Date = m.Date.String()
			position.Latitude = m.Latitude
			position.Longitude = m.Longitude
			position.Validity = string(m.Validity)

			// Update velocity
			velocity.SpeedKnots = m.Speed
			velocity.CourseDeg = m.Course

			// Update combined fix
			fix.Time = m.Time.String()
			fix.Date = m.Date.String()
			fix.Latitude = m.Latitude
			fix.Longitude = m.Longitude
			fix.SpeedKnots = m.Speed
			fix.CourseDeg = m.Course
			fix.Validity = string(m.Validity)

			// Publish position and velocity to separate topics
			publishJSON(cfg.TopicGPSPosition, position)
			publishJSON(cfg.TopicGPSVelocity, velocity)

			// Publish the combined fix the router decodes, but only when
			// it actually changed since the last publish.
			payload, err := json.Marshal(fix)
			if err != nil {
				log.Printf("GPS JSON marshal error: %v", err)
				continue
			}

			payloadStr := string(payload)
			if payloadStr != lastPublishedFix {
				publishJSON(cfg.TopicGPS, fix)
				log.Printf("published GPS: lat=%.6f lon=%.6f alt=%.1fm sats=%d valid=%v fix=%s",
					fix.Latitude, fix.Longitude, fix.Altitude,
					fix.NumSatellites, fix.Valid(), fix.FixType)
				lastPublishedFix = payloadStr
			}

		case nmea.TypeGGA:
			// GGA: Global Positioning System Fix Data - provides altitude, fix quality, satellites
			m := sentence.(nmea.GGA)

			// Update position with altitude
			position.Altitude = m.Altitude

			// Update quality
			quality.NumSatellites = m.NumSatellites
			quality.HDOP = m.HDOP

			// Map fix quality to descriptive string
			switch m.FixQuality {
			case "0":
				quality.FixQuality = "invalid"
			case "1":
				quality.FixQuality = "GPS"
			case "2":
				quality.FixQuality = "DGPS"
			case "4":
				quality.FixQuality = "RTK fixed"
			case "5":
				quality.FixQuality = "RTK float"
			default:
				quality.FixQuality = m.FixQuality
			}

			// Update combined fix
			fix.Altitude = m.Altitude
			fix.NumSatellites = m.NumSatellites
			fix.HDOP = m.HDOP
			fix.FixQuality = quality.FixQuality

			// Publish position and quality
			publishJSON(cfg.TopicGPSPosition, position)
			publishJSON(cfg.TopicGPSQuality, quality)

		case nmea.TypeGSA:
			// GSA: GPS DOP and Active Satellites - provides fix type and dilution of precision
			m := sentence.(nmea.GSA)

			// Map fix type to descriptive string
			switch m.FixType {
			case "1":
				quality.FixType = "no fix"
			case "2":
				quality.FixType = "2D"
			case "3":
				quality.FixType = "3D"
			default:
				quality.FixType = m.FixType
			}

			quality.PDOP = m.PDOP
			quality.HDOP = m.HDOP
			quality.VDOP = m.VDOP

			// Update combined fix
			fix.FixType = quality.FixType
			fix.PDOP = m.PDOP
			fix.HDOP = m.HDOP
			fix.VDOP = m.VDOP

			// Publish quality
			publishJSON(cfg.TopicGPSQuality, quality)

		case nmea.TypeVTG:
			// VTG: Track Made Good and Ground Speed - provides speed in km/h
			m := sentence.(nmea.VTG)

			velocity.SpeedKmh = m.GroundSpeedKPH
			fix.SpeedKmh = m.GroundSpeedKPH

			// Publish velocity
			publishJSON(cfg.TopicGPSVelocity, velocity)

		case nmea.TypeGSV:
			// GSV: Satellites in View - provides satellite info with signal
			// strength, one sequence per constellation (GPGSV for GPS,
			// GLGSV for GLONASS). MessageNumber/TotalMessages identify the
			// position within that constellation's own sequence, so the
			// buffer reset below is keyed per talker, not globally.
			m := sentence.(nmea.GSV)

			isGLONASS := sentence.TalkerID() == "GL"

			if m.MessageNumber == 1 {
				if isGLONASS {
					glonassSatBuffer = make([]gps.Satellite, 0)
				} else {
					gpsSatBuffer = make([]gps.Satellite, 0)
				}
			}

			for _, sv := range m.Info {
				sat := gps.Satellite{
					SVNumber:  sv.SVPRNNumber,
					Elevation: sv.Elevation,
					Azimuth:   sv.Azimuth,
					SNR:       sv.SNR,
				}
				if isGLONASS {
					glonassSatBuffer = append(glonassSatBuffer, sat)
				} else {
					gpsSatBuffer = append(gpsSatBuffer, sat)
				}
			}

			// Once a constellation's sequence completes, republish the
			// combined snapshot (the other constellation's buffer carries
			// over from its own last completed sequence).
			if m.MessageNumber == m.TotalMessages {
				satellites.GPSSatellites = gpsSatBuffer
				satellites.GLONASSSatellites = glonassSatBuffer
				satellites.GPSCount = len(gpsSatBuffer)
				satellites.GLONASSCount = len(glonassSatBuffer)
				fix.GPSSatellitesInView = gpsSatBuffer
				fix.GLONASSSatellitesInView = glonassSatBuffer

				publishJSON(cfg.TopicGPSSatellites, satellites)
			}

		default:
			// Ignore other sentence types (GLL, etc.)
		}
	}
}
