package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/basalt-run/almanac/pkg/errs"
)

// Value is the tagged union of everything a Key can address. Exactly one
// concrete type is valid for a given Key.Field.
type Value interface {
	isRecordValue()
}

// NameValue is a short display name.
type NameValue string

// PhotoValue is a URL plus an optional attribution ("" meaning absent).
type PhotoValue struct {
	URL         string
	Attribution string
}

// ContactValue is one contact detail, e.g. a phone number or handle.
type ContactValue string

// SupervisorValue is the supervising office's id.
type SupervisorValue string

// TenureValue is a tenure's end date; nil means the tenure is ongoing.
type TenureValue struct {
	EndDate *time.Time
}

func (NameValue) isRecordValue()      {}
func (PhotoValue) isRecordValue()     {}
func (ContactValue) isRecordValue()   {}
func (SupervisorValue) isRecordValue() {}
func (TenureValue) isRecordValue()    {}

// Encode renders v to the fixed compact binary form saved under a Key's
// path. The field governs the layout; there is no type tag in the bytes
// themselves because the Key already carries that information.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	switch val := v.(type) {
	case NameValue:
		buf.WriteString(string(val))
	case ContactValue:
		buf.WriteString(string(val))
	case SupervisorValue:
		buf.WriteString(string(val))
	case PhotoValue:
		writeString(&buf, val.URL)
		writeOptionalString(&buf, val.Attribution)
	case TenureValue:
		writeOptionalTime(&buf, val.EndDate)
	default:
		return nil, fmt.Errorf("%w: unencodable value type %T", errs.ErrCodec, v)
	}
	return buf.Bytes(), nil
}

// Decode parses raw bytes into the Value shape field expects.
func Decode(field Field, raw []byte) (Value, error) {
	r := bytes.NewReader(raw)
	switch field {
	case FieldName:
		return NameValue(raw), nil
	case FieldContact:
		return ContactValue(raw), nil
	case FieldSupervisor:
		return SupervisorValue(raw), nil
	case FieldPhoto:
		url, err := readString(r)
		if err != nil {
			return nil, err
		}
		attr, err := readOptionalString(r)
		if err != nil {
			return nil, err
		}
		return PhotoValue{URL: url, Attribution: attr}, nil
	case FieldTenure:
		end, err := readOptionalTime(r)
		if err != nil {
			return nil, err
		}
		return TenureValue{EndDate: end}, nil
	default:
		return nil, fmt.Errorf("%w: unknown field %v", errs.ErrCodec, field)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf.Write(lenBuf[:n])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("%w: read string length: %v", errs.ErrCodec, err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: read string body: %v", errs.ErrCodec, err)
	}
	return string(b), nil
}

func writeOptionalString(buf *bytes.Buffer, s string) {
	if s == "" {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeString(buf, s)
}

func readOptionalString(r *bytes.Reader) (string, error) {
	present, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("%w: read optional-string flag: %v", errs.ErrCodec, err)
	}
	if present == 0 {
		return "", nil
	}
	return readString(r)
}

func writeOptionalTime(buf *bytes.Buffer, t *time.Time) {
	if t == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeString(buf, t.Format(tenureDateLayout))
}

func readOptionalTime(r *bytes.Reader) (*time.Time, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: read optional-date flag: %v", errs.ErrCodec, err)
	}
	if present == 0 {
		return nil, nil
	}
	s, err := readString(r)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(tenureDateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad tenure end date %q: %v", errs.ErrCodec, s, err)
	}
	return &t, nil
}
