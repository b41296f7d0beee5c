package cat048

import (
	"fmt"
	"strings"

	"goasterix/internal/codec"
)

// metersPerNM converts between the wire's nautical-mile resolutions and
// the metric quantities callers work in.
const metersPerNM = 1852.0

// TargetReport is a typed view over the common items of a CAT048
// record. Nil members are absent from the record; Fields builds the
// codec representation of the present ones and FromRecord fills the
// view from a decoded record.
type TargetReport struct {
	SAC uint8
	SIC uint8

	TimeOfDay   *float64 // seconds since midnight UTC
	Position    *PolarPosition
	Mode3A      *Mode3ACode
	FlightLevel *FlightLevel
	ICAOAddress *uint32
	Callsign    string // empty when absent
	TrackNumber *uint16
	Velocity    *PolarVelocity
}

// PolarPosition is the measured position relative to the radar head.
type PolarPosition struct {
	RangeMeters float64
	AzimuthDeg  float64
}

// Mode3ACode is the transponder code as four octal digits plus its
// validity flags.
type Mode3ACode struct {
	Code      string
	Validated bool
	Garbled   bool
}

// FlightLevel is the barometric level in flight-level units of 100 ft.
type FlightLevel struct {
	Level     float64
	Validated bool
	Garbled   bool
}

// PolarVelocity is the calculated track velocity.
type PolarVelocity struct {
	GroundspeedKt float64
	HeadingDeg    float64
}

func floatPtr(v float64) *float64 { return &v }
func uint32Ptr(v uint32) *uint32  { return &v }
func uint16Ptr(v uint16) *uint16  { return &v }

// Fields builds the record items for the present members, named by
// their catalogue item numbers.
func (t *TargetReport) Fields() []codec.Field {
	fields := []codec.Field{
		{Name: "010", Value: codec.GroupValue(
			codec.Field{Name: "SAC", Value: codec.RawValue(uint64(t.SAC))},
			codec.Field{Name: "SIC", Value: codec.RawValue(uint64(t.SIC))},
		)},
	}
	if t.TimeOfDay != nil {
		fields = append(fields, codec.Field{Name: "140", Value: codec.FloatValue(*t.TimeOfDay)})
	}
	if t.Position != nil {
		fields = append(fields, codec.Field{Name: "040", Value: codec.GroupValue(
			codec.Field{Name: "RHO", Value: codec.FloatValue(t.Position.RangeMeters / metersPerNM)},
			codec.Field{Name: "THETA", Value: codec.FloatValue(t.Position.AzimuthDeg)},
		)})
	}
	if t.Mode3A != nil {
		fields = append(fields, codec.Field{Name: "070", Value: codec.GroupValue(
			codec.Field{Name: "V", Value: codec.RawValue(flagBit(!t.Mode3A.Validated))},
			codec.Field{Name: "G", Value: codec.RawValue(flagBit(t.Mode3A.Garbled))},
			codec.Field{Name: "L", Value: codec.RawValue(0)},
			codec.Field{Name: "MODE3A", Value: codec.StringValue(t.Mode3A.Code)},
		)})
	}
	if t.FlightLevel != nil {
		fields = append(fields, codec.Field{Name: "090", Value: codec.GroupValue(
			codec.Field{Name: "V", Value: codec.RawValue(flagBit(!t.FlightLevel.Validated))},
			codec.Field{Name: "G", Value: codec.RawValue(flagBit(t.FlightLevel.Garbled))},
			codec.Field{Name: "FL", Value: codec.FloatValue(t.FlightLevel.Level)},
		)})
	}
	if t.ICAOAddress != nil {
		fields = append(fields, codec.Field{Name: "220", Value: codec.RawValue(uint64(*t.ICAOAddress))})
	}
	if t.Callsign != "" {
		fields = append(fields, codec.Field{Name: "240", Value: codec.StringValue(t.Callsign)})
	}
	if t.TrackNumber != nil {
		fields = append(fields, codec.Field{Name: "161", Value: codec.GroupValue(
			codec.Field{Name: "TRN", Value: codec.IntValue(int64(*t.TrackNumber))},
		)})
	}
	if t.Velocity != nil {
		fields = append(fields, codec.Field{Name: "200", Value: codec.GroupValue(
			codec.Field{Name: "GSP", Value: codec.FloatValue(t.Velocity.GroundspeedKt / 3600)},
			codec.Field{Name: "HDG", Value: codec.FloatValue(t.Velocity.HeadingDeg)},
		)})
	}
	return fields
}

// FromRecord fills a TargetReport from a decoded CAT048 record.
func FromRecord(rec *codec.Record) (*TargetReport, error) {
	if rec.Category != 48 {
		return nil, fmt.Errorf("record is category %d, not 48", rec.Category)
	}
	t := &TargetReport{}
	for _, f := range rec.Fields {
		switch f.Name {
		case "010":
			sac, err := groupNumber(f.Value, "SAC")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			sic, err := groupNumber(f.Value, "SIC")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			t.SAC, t.SIC = uint8(sac), uint8(sic)
		case "140":
			t.TimeOfDay = floatPtr(f.Value.Float)
		case "040":
			rho, err := groupNumber(f.Value, "RHO")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			theta, err := groupNumber(f.Value, "THETA")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			t.Position = &PolarPosition{RangeMeters: rho * metersPerNM, AzimuthDeg: theta}
		case "070":
			code, ok := f.Value.Field("MODE3A")
			if !ok {
				return nil, itemErr(f.Name, fmt.Errorf("missing MODE3A"))
			}
			v, _ := groupNumber(f.Value, "V")
			g, _ := groupNumber(f.Value, "G")
			t.Mode3A = &Mode3ACode{Code: code.Str, Validated: v == 0, Garbled: g != 0}
		case "090":
			fl, err := groupNumber(f.Value, "FL")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			v, _ := groupNumber(f.Value, "V")
			g, _ := groupNumber(f.Value, "G")
			t.FlightLevel = &FlightLevel{Level: fl, Validated: v == 0, Garbled: g != 0}
		case "220":
			t.ICAOAddress = uint32Ptr(uint32(f.Value.Uint))
		case "240":
			t.Callsign = strings.TrimRight(f.Value.Str, " ")
		case "161":
			trn, err := groupNumber(f.Value, "TRN")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			t.TrackNumber = uint16Ptr(uint16(trn))
		case "200":
			gsp, err := groupNumber(f.Value, "GSP")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			hdg, err := groupNumber(f.Value, "HDG")
			if err != nil {
				return nil, itemErr(f.Name, err)
			}
			t.Velocity = &PolarVelocity{GroundspeedKt: gsp * 3600, HeadingDeg: hdg}
		}
	}
	return t, nil
}

func flagBit(set bool) uint64 {
	if set {
		return 1
	}
	return 0
}

func groupNumber(v codec.Value, name string) (float64, error) {
	member, ok := v.Field(name)
	if !ok {
		return 0, fmt.Errorf("missing %s", name)
	}
	n, ok := member.Number()
	if !ok {
		return 0, fmt.Errorf("%s is not numeric", name)
	}
	return n, nil
}

func itemErr(item string, err error) error {
	return fmt.Errorf("item %s: %w", item, err)
}
