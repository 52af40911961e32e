package codec

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/layercache/internal/wire"
)

// ErrUndecodable is returned by Value.Decode when the input is not a valid
// envelope and V cannot hold the original text.
var ErrUndecodable = errors.New("codec: undecodable value")

// Value is the default layercache codec. Every payload is wrapped in a tagged
// envelope whose format byte names the codec that produced it:
//
//   - strings and []byte are stored verbatim (FormatString, FormatBytes),
//     so "42" stays the string "42";
//   - everything else is JSON (FormatJSON) when JSON can represent it;
//   - otherwise the binary fallback (Msgpack by default, or CBOR).
//
// Decode dispatches on the format byte and understands both binary
// fallbacks regardless of which one Encode is configured to write.
// Input that is not an envelope decodes to the original string when V can hold
// a string (string, any); for any other V it is ErrUndecodable.
type Value[V any] struct {
	text     JSON[V]
	msgpack  Msgpack[V]
	cbor     CBOR[V]
	fallback byte
	max      int
}

var _ Codec[struct{}] = Value[struct{}]{}

type ValueOption func(*valueConfig)

type valueConfig struct {
	fallback byte
	max      int
}

// WithCBORFallback makes Encode use deterministic CBOR instead of Msgpack
// for values JSON cannot represent.
func WithCBORFallback() ValueOption {
	return func(c *valueConfig) { c.fallback = FormatCBOR }
}

// WithMaxDecode rejects stored values larger than n bytes. n <= 0 disables the limit.
func WithMaxDecode(n int) ValueOption {
	return func(c *valueConfig) { c.max = n }
}

func NewValue[V any](opts ...ValueOption) Value[V] {
	cfg := valueConfig{fallback: FormatMsgpack}
	for _, o := range opts {
		o(&cfg)
	}
	return Value[V]{
		cbor:     MustCBOR[V](true),
		fallback: cfg.fallback,
		max:      cfg.max,
	}
}

func (c Value[V]) Encode(v V) ([]byte, error) {
	switch x := any(v).(type) {
	case string:
		return wire.EncodeValue(FormatString, []byte(x)), nil
	case []byte:
		return wire.EncodeValue(FormatBytes, x), nil
	}

	b, err := c.text.Encode(v)
	if err == nil {
		return wire.EncodeValue(FormatJSON, b), nil
	}
	// neither binary codec detects reference cycles; they would recurse forever
	if cerr := checkCycles(v); cerr != nil {
		return nil, fmt.Errorf("codec: value not encodable: %w", cerr)
	}

	if c.fallback == FormatCBOR {
		b, err = c.cborCodec().Encode(v)
	} else {
		b, err = c.msgpack.Encode(v)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: value not encodable: %w", err)
	}
	return wire.EncodeValue(c.fallback, b), nil
}

func (c Value[V]) Decode(b []byte) (V, error) {
	var zero V
	if c.max > 0 && len(b) > c.max {
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.max)
	}

	format, payload, err := wire.DecodeValue(b)
	if err != nil {
		return verbatim[V](b, err)
	}

	var v V
	switch format {
	case FormatString:
		if v, ok := fromString[V](string(payload)); ok {
			return v, nil
		}
		err = fmt.Errorf("string payload for %T", zero)
	case FormatBytes:
		if v, ok := fromBytes[V](payload); ok {
			return v, nil
		}
		err = fmt.Errorf("bytes payload for %T", zero)
	case FormatJSON:
		v, err = c.text.Decode(payload)
	case FormatMsgpack:
		v, err = c.msgpack.Decode(payload)
	case FormatCBOR:
		v, err = c.cborCodec().Decode(payload)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return verbatim[V](b, err)
	}
	return v, nil
}

// zero-value Value (not built by NewValue) still needs a usable CBOR codec.
func (c Value[V]) cborCodec() CBOR[V] {
	if c.cbor.enc == nil {
		return MustCBOR[V](true)
	}
	return c.cbor
}

func verbatim[V any](b []byte, cause error) (V, error) {
	if v, ok := fromString[V](string(b)); ok {
		return v, nil
	}
	var zero V
	return zero, fmt.Errorf("%w: %v", ErrUndecodable, cause)
}

func fromString[V any](s string) (V, bool) {
	if v, ok := any(s).(V); ok {
		return v, true
	}
	if v, ok := any([]byte(s)).(V); ok {
		return v, true
	}
	var zero V
	return zero, false
}

func fromBytes[V any](b []byte) (V, bool) {
	cp := append([]byte{}, b...)
	if v, ok := any(cp).(V); ok {
		return v, true
	}
	if v, ok := any(string(b)).(V); ok {
		return v, true
	}
	var zero V
	return zero, false
}
