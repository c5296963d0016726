package wire

// Field numbers below follow the upstream Kinetic protocol buffer schema
// (Message, Command.Header, Command.Body, Command.Status, KeyValue,
// Range). Marshal/Unmarshal are written by hand, field by field, in the
// same direct style protoc-gen-gogofaster emits — there is no reflection
// and no .proto file, since no protoc toolchain runs in this build.

const (
	fieldHeaderMessageType    = 1
	fieldHeaderSequence       = 3
	fieldHeaderAckSequence    = 4
	fieldHeaderConnectionID   = 5
	fieldHeaderClusterVersion = 6
	fieldHeaderTimeout        = 7
	fieldHeaderPriority       = 8

	fieldKeyValueKey      = 1
	fieldKeyValueNewValue = 2

	fieldRangeStartKey          = 1
	fieldRangeEndKey            = 2
	fieldRangeStartKeyInclusive = 3
	fieldRangeEndKeyInclusive   = 4
	fieldRangeMaxReturned       = 5
	fieldRangeKeys              = 6

	fieldStatusCode   = 1
	fieldStatusDetail = 2

	fieldBodyKeyValue = 1
	fieldBodyRange    = 3

	fieldCommandHeader = 1
	fieldCommandBody   = 2
	fieldCommandStatus = 3

	fieldMessageCommandBytes = 1
	fieldMessageAuthType     = 2
	fieldMessageHMACAuth     = 3

	fieldHMACAuthIdentity = 1
	fieldHMACAuthHMAC     = 2
)

func (h *Header) marshal() []byte {
	if h == nil {
		return nil
	}
	var buf []byte
	buf = appendVarintField(buf, fieldHeaderMessageType, int64(h.MessageType))
	buf = appendVarintField(buf, fieldHeaderSequence, h.Sequence)
	buf = appendVarintField(buf, fieldHeaderAckSequence, h.AckSequence)
	buf = appendVarintField(buf, fieldHeaderConnectionID, h.ConnectionID)
	buf = appendVarintField(buf, fieldHeaderClusterVersion, h.ClusterVersion)
	buf = appendVarintField(buf, fieldHeaderTimeout, h.TimeoutMillis)
	buf = appendVarintField(buf, fieldHeaderPriority, int64(h.Priority))
	return buf
}

func unmarshalHeader(data []byte) (*Header, error) {
	h := &Header{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldHeaderMessageType:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.MessageType = MessageType(v)
		case fieldHeaderSequence:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.Sequence = int64(v)
		case fieldHeaderAckSequence:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.AckSequence = int64(v)
		case fieldHeaderConnectionID:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.ConnectionID = int64(v)
		case fieldHeaderClusterVersion:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.ClusterVersion = int64(v)
		case fieldHeaderTimeout:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.TimeoutMillis = int64(v)
		case fieldHeaderPriority:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			h.Priority = int32(v)
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

func (kv *KeyValue) marshal() []byte {
	if kv == nil {
		return nil
	}
	var buf []byte
	buf = appendBytesField(buf, fieldKeyValueKey, kv.Key)
	buf = appendBytesField(buf, fieldKeyValueNewValue, kv.NewValue)
	return buf
}

func unmarshalKeyValue(data []byte) (*KeyValue, error) {
	kv := &KeyValue{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldKeyValueKey:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			kv.Key = append([]byte(nil), b...)
		case fieldKeyValueNewValue:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			kv.NewValue = append([]byte(nil), b...)
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return kv, nil
}

func (r *Range) marshal() []byte {
	if r == nil {
		return nil
	}
	var buf []byte
	buf = appendBytesField(buf, fieldRangeStartKey, r.StartKey)
	buf = appendBytesField(buf, fieldRangeEndKey, r.EndKey)
	buf = appendBoolField(buf, fieldRangeStartKeyInclusive, r.StartKeyInclusive)
	buf = appendBoolField(buf, fieldRangeEndKeyInclusive, r.EndKeyInclusive)
	buf = appendVarintField(buf, fieldRangeMaxReturned, int64(r.MaxReturned))
	for _, k := range r.Keys {
		buf = appendBytesField(buf, fieldRangeKeys, k)
	}
	return buf
}

func unmarshalRange(data []byte) (*Range, error) {
	r := &Range{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldRangeStartKey:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			r.StartKey = append([]byte(nil), b...)
		case fieldRangeEndKey:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			r.EndKey = append([]byte(nil), b...)
		case fieldRangeStartKeyInclusive:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			r.StartKeyInclusive = v != 0
		case fieldRangeEndKeyInclusive:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			r.EndKeyInclusive = v != 0
		case fieldRangeMaxReturned:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			r.MaxReturned = int32(v)
		case fieldRangeKeys:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			r.Keys = append(r.Keys, append([]byte(nil), b...))
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (s *Status) marshal() []byte {
	if s == nil {
		return nil
	}
	var buf []byte
	buf = appendVarintField(buf, fieldStatusCode, int64(s.Code))
	if s.Detail != "" {
		buf = appendBytesField(buf, fieldStatusDetail, []byte(s.Detail))
	}
	return buf
}

func unmarshalStatus(data []byte) (*Status, error) {
	s := &Status{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldStatusCode:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			s.Code = StatusCode(v)
		case fieldStatusDetail:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			s.Detail = string(b)
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (b *Body) marshal() []byte {
	if b == nil {
		return nil
	}
	var buf []byte
	buf = appendMessageField(buf, fieldBodyKeyValue, b.KeyValue.marshal())
	buf = appendMessageField(buf, fieldBodyRange, b.Range.marshal())
	return buf
}

func unmarshalBody(data []byte) (*Body, error) {
	b := &Body{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldBodyKeyValue:
			raw, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			kv, err := unmarshalKeyValue(raw)
			if err != nil {
				return nil, err
			}
			b.KeyValue = kv
		case fieldBodyRange:
			raw, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			rg, err := unmarshalRange(raw)
			if err != nil {
				return nil, err
			}
			b.Range = rg
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// Marshal encodes a Command into its protobuf wire representation.
func (c *Command) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendMessageField(buf, fieldCommandHeader, c.Header.marshal())
	buf = appendMessageField(buf, fieldCommandBody, c.Body.marshal())
	buf = appendMessageField(buf, fieldCommandStatus, c.Status.marshal())
	return buf, nil
}

// UnmarshalCommand decodes a protobuf-encoded Command.
func UnmarshalCommand(data []byte) (*Command, error) {
	c := &Command{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldCommandHeader:
			raw, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			h, err := unmarshalHeader(raw)
			if err != nil {
				return nil, err
			}
			c.Header = h
		case fieldCommandBody:
			raw, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			b, err := unmarshalBody(raw)
			if err != nil {
				return nil, err
			}
			c.Body = b
		case fieldCommandStatus:
			raw, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			s, err := unmarshalStatus(raw)
			if err != nil {
				return nil, err
			}
			c.Status = s
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (a *HMACAuth) marshal() []byte {
	if a == nil {
		return nil
	}
	var buf []byte
	buf = appendVarintField(buf, fieldHMACAuthIdentity, a.Identity)
	buf = appendBytesField(buf, fieldHMACAuthHMAC, a.HMAC)
	return buf
}

func unmarshalHMACAuth(data []byte) (*HMACAuth, error) {
	a := &HMACAuth{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldHMACAuthIdentity:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			a.Identity = int64(v)
		case fieldHMACAuthHMAC:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			a.HMAC = append([]byte(nil), b...)
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// Marshal encodes a Message into its protobuf wire representation.
func (m *Message) Marshal() ([]byte, error) {
	var buf []byte
	buf = appendBytesField(buf, fieldMessageCommandBytes, m.CommandBytes)
	buf = appendVarintField(buf, fieldMessageAuthType, int64(m.AuthType))
	buf = appendMessageField(buf, fieldMessageHMACAuth, m.HMACAuth.marshal())
	return buf, nil
}

// UnmarshalMessage decodes a protobuf-encoded Message.
func UnmarshalMessage(data []byte) (*Message, error) {
	m := &Message{}
	d := newDecoder(data)
	for !d.done() {
		fn, wt, err := d.readTag()
		if err != nil {
			return nil, err
		}
		switch fn {
		case fieldMessageCommandBytes:
			b, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			m.CommandBytes = append([]byte(nil), b...)
		case fieldMessageAuthType:
			v, err := d.readVarint()
			if err != nil {
				return nil, err
			}
			m.AuthType = int32(v)
		case fieldMessageHMACAuth:
			raw, err := d.readBytes()
			if err != nil {
				return nil, err
			}
			a, err := unmarshalHMACAuth(raw)
			if err != nil {
				return nil, err
			}
			m.HMACAuth = a
		default:
			if err := d.skip(wt); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
