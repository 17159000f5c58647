package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	tspb "github.com/golang/protobuf/ptypes/timestamp"
)

// Record is a housekeeping sample of one counter. It travels in protobuf
// wire format:
//
//	message Record {
//	  string source = 1;
//	  string link = 2;
//	  string counter = 3;
//	  uint32 id = 4;
//	  uint32 value = 5;
//	  google.protobuf.Timestamp time = 6;
//	}
type Record struct {
	Source  string
	Link    string
	Counter string
	ID      uint16
	Value   uint16
	Time    time.Time
}

// ErrMalformedRecord indicates undecodable record bytes.
var ErrMalformedRecord = errors.New("malformed housekeeping record")

const (
	fieldSource  = 1
	fieldLink    = 2
	fieldCounter = 3
	fieldID      = 4
	fieldValue   = 5
	fieldTime    = 6

	wireVarint = 0
	wireBytes  = 2
)

func key(field, wire int) uint64 {
	return uint64(field<<3 | wire)
}

// Marshal encodes the record.
func (r *Record) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	for _, f := range []struct {
		field int
		value string
	}{{fieldSource, r.Source}, {fieldLink, r.Link}, {fieldCounter, r.Counter}} {
		if f.value == "" {
			continue
		}
		buf.EncodeVarint(key(f.field, wireBytes))
		buf.EncodeStringBytes(f.value)
	}
	buf.EncodeVarint(key(fieldID, wireVarint))
	buf.EncodeVarint(uint64(r.ID))
	buf.EncodeVarint(key(fieldValue, wireVarint))
	buf.EncodeVarint(uint64(r.Value))
	if !r.Time.IsZero() {
		ts, err := ptypes.TimestampProto(r.Time)
		if err != nil {
			return nil, err
		}
		encoded, err := proto.Marshal(ts)
		if err != nil {
			return nil, err
		}
		buf.EncodeVarint(key(fieldTime, wireBytes))
		buf.EncodeRawBytes(encoded)
	}
	return buf.Bytes(), nil
}

// UnmarshalRecord decodes a record. Unknown fields are skipped.
func UnmarshalRecord(data []byte) (*Record, error) {
	r := &Record{}
	buf := proto.NewBuffer(data)
	for len(buf.Unread()) > 0 {
		k, err := buf.DecodeVarint()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		field, wire := int(k>>3), int(k&7)
		switch wire {
		case wireVarint:
			v, err := buf.DecodeVarint()
			if err != nil {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, field, err)
			}
			switch field {
			case fieldID:
				r.ID = uint16(v)
			case fieldValue:
				r.Value = uint16(v)
			}
		case wireBytes:
			b, err := buf.DecodeRawBytes(false)
			if err != nil {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, field, err)
			}
			switch field {
			case fieldSource:
				r.Source = string(b)
			case fieldLink:
				r.Link = string(b)
			case fieldCounter:
				r.Counter = string(b)
			case fieldTime:
				var ts tspb.Timestamp
				if err := proto.Unmarshal(b, &ts); err != nil {
					return nil, fmt.Errorf("%w: time: %v", ErrMalformedRecord, err)
				}
				if r.Time, err = ptypes.Timestamp(&ts); err != nil {
					return nil, fmt.Errorf("%w: time: %v", ErrMalformedRecord, err)
				}
			}
		default:
			return nil, fmt.Errorf("%w: field %d: wire type %d", ErrMalformedRecord, field, wire)
		}
	}
	return r, nil
}

// String formats the record for humans.
func (r *Record) String() string {
	name := r.Counter
	if name == "" {
		name = fmt.Sprintf("0x%04x", r.ID)
	}
	if r.Link != "" {
		name = r.Link + "/" + name
	}
	return fmt.Sprintf("%s %s %s = %d", r.Time.Format(time.RFC3339Nano), r.Source, name, r.Value)
}
