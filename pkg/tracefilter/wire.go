package tracefilter

import (
	"encoding/base64"
	"math"
	"slices"

	"github.com/VictoriaMetrics/easyproto"
	"github.com/go-faster/errors"
)

// Wire schema:
//
//	AccumulatorSet { fixed64 query = 1; repeated Accumulator accumulators = 2; }
//	Accumulator    { uint32 cursor = 1; uint32 start = 2; repeated Binding bindings = 3; }
//	Binding        { uint32 level = 1; string span = 2; uint32 breadth = 3; repeated Attr attrs = 4; }
//	Attr           { string key = 1; oneof value { string s = 2; sint64 i = 3; double d = 4; bool b = 5; } }

var mp easyproto.MarshalerPool

// MarshalProtobuf appends the protobuf encoding of s to dst.
func (s *AccumulatorSet) MarshalProtobuf(dst []byte) []byte {
	m := mp.Get()
	s.marshalProtobuf(m.MessageMarshaler())
	dst = m.Marshal(dst)
	mp.Put(m)
	return dst
}

func (s *AccumulatorSet) marshalProtobuf(mm *easyproto.MessageMarshaler) {
	mm.AppendFixed64(1, s.Query)
	for i := range s.Accumulators {
		s.Accumulators[i].marshalProtobuf(mm.AppendMessage(2))
	}
}

func (a *Accumulator) marshalProtobuf(mm *easyproto.MessageMarshaler) {
	mm.AppendUint32(1, uint32(a.Cursor))
	mm.AppendUint32(2, uint32(a.Start))
	for i := range a.Bindings {
		a.Bindings[i].marshalProtobuf(mm.AppendMessage(3))
	}
}

func (b *Binding) marshalProtobuf(mm *easyproto.MessageMarshaler) {
	mm.AppendUint32(1, uint32(b.Level))
	mm.AppendString(2, b.Span)
	mm.AppendUint32(3, uint32(b.Breadth))

	keys := make([]string, 0, len(b.Attrs))
	for k := range b.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v, ok := Normalize(b.Attrs[k])
		if !ok {
			continue
		}
		attr := mm.AppendMessage(4)
		attr.AppendString(1, k)
		switch v := v.(type) {
		case string:
			attr.AppendString(2, v)
		case int64:
			attr.AppendSint64(3, v)
		case float64:
			attr.AppendDouble(4, v)
		case bool:
			attr.AppendBool(5, v)
		}
	}
}

// UnmarshalProtobuf decodes src into s, replacing its content.
func (s *AccumulatorSet) UnmarshalProtobuf(src []byte) (err error) {
	*s = AccumulatorSet{}

	var fc easyproto.FieldContext
	for len(src) > 0 {
		src, err = fc.NextField(src)
		if err != nil {
			return errors.Wrap(err, "read next field")
		}
		switch fc.FieldNum {
		case 1:
			query, ok := fc.Fixed64()
			if !ok {
				return errors.Errorf("read query (field %d)", fc.FieldNum)
			}
			s.Query = query
		case 2:
			data, ok := fc.MessageData()
			if !ok {
				return errors.Errorf("read accumulator (field %d)", fc.FieldNum)
			}
			var a Accumulator
			if err := a.unmarshalProtobuf(data); err != nil {
				return errors.Wrapf(err, "read accumulator (field %d)", fc.FieldNum)
			}
			s.Accumulators = append(s.Accumulators, a)
		}
	}
	return nil
}

func (a *Accumulator) unmarshalProtobuf(src []byte) (err error) {
	var fc easyproto.FieldContext
	for len(src) > 0 {
		src, err = fc.NextField(src)
		if err != nil {
			return errors.Wrap(err, "read next field")
		}
		switch fc.FieldNum {
		case 1:
			cursor, ok := fc.Uint32()
			if !ok {
				return errors.Errorf("read cursor (field %d)", fc.FieldNum)
			}
			a.Cursor = int(cursor)
		case 2:
			start, ok := fc.Uint32()
			if !ok {
				return errors.Errorf("read start (field %d)", fc.FieldNum)
			}
			a.Start = int(start)
		case 3:
			data, ok := fc.MessageData()
			if !ok {
				return errors.Errorf("read binding (field %d)", fc.FieldNum)
			}
			var b Binding
			if err := b.unmarshalProtobuf(data); err != nil {
				return errors.Wrapf(err, "read binding (field %d)", fc.FieldNum)
			}
			a.Bindings = append(a.Bindings, b)
		}
	}
	return nil
}

func (b *Binding) unmarshalProtobuf(src []byte) (err error) {
	var fc easyproto.FieldContext
	for len(src) > 0 {
		src, err = fc.NextField(src)
		if err != nil {
			return errors.Wrap(err, "read next field")
		}
		switch fc.FieldNum {
		case 1:
			level, ok := fc.Uint32()
			if !ok {
				return errors.Errorf("read level (field %d)", fc.FieldNum)
			}
			b.Level = int(level)
		case 2:
			span, ok := fc.String()
			if !ok {
				return errors.Errorf("read span (field %d)", fc.FieldNum)
			}
			b.Span = span
		case 3:
			breadth, ok := fc.Uint32()
			if !ok {
				return errors.Errorf("read breadth (field %d)", fc.FieldNum)
			}
			b.Breadth = int(breadth)
		case 4:
			data, ok := fc.MessageData()
			if !ok {
				return errors.Errorf("read attr (field %d)", fc.FieldNum)
			}
			k, v, err := unmarshalAttr(data)
			if err != nil {
				return errors.Wrapf(err, "read attr (field %d)", fc.FieldNum)
			}
			if b.Attrs == nil {
				b.Attrs = make(map[string]any)
			}
			b.Attrs[k] = v
		}
	}
	return nil
}

func unmarshalAttr(src []byte) (key string, value any, err error) {
	var fc easyproto.FieldContext
	for len(src) > 0 {
		src, err = fc.NextField(src)
		if err != nil {
			return "", nil, errors.Wrap(err, "read next field")
		}
		var ok bool
		switch fc.FieldNum {
		case 1:
			key, ok = fc.String()
		case 2:
			value, ok = fc.String()
		case 3:
			value, ok = fc.Sint64()
		case 4:
			var d float64
			d, ok = fc.Double()
			if ok && (math.IsNaN(d) || math.IsInf(d, 0)) {
				return "", nil, errors.Errorf("non-finite double (field %d)", fc.FieldNum)
			}
			value = d
		case 5:
			value, ok = fc.Bool()
		default:
			ok = true
		}
		if !ok {
			return "", nil, errors.Errorf("read value (field %d)", fc.FieldNum)
		}
	}
	return key, value, nil
}

// EncodeHeader encodes s as a header value. An empty set encodes as "".
func EncodeHeader(s AccumulatorSet) string {
	if len(s.Accumulators) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(s.MarshalProtobuf(nil))
}

// DecodeHeader decodes a header value written by EncodeHeader.
func DecodeHeader(value string) (AccumulatorSet, error) {
	var s AccumulatorSet
	if value == "" {
		return s, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return s, errors.Wrap(err, "decode base64")
	}
	if err := s.UnmarshalProtobuf(data); err != nil {
		return AccumulatorSet{}, errors.Wrap(err, "decode accumulator set")
	}
	return s, nil
}
