package codec

import (
	"fmt"

	"github.com/unkn0wn-root/layercache/internal/wire"
)

// FormattedCodec is a codec that knows its envelope discriminator.
type FormattedCodec[V any] interface {
	Codec[V]
	Formatted
}

// Tagged wraps every payload of Inner in the same envelope Value writes,
// so the bytes in a shared layer are self-describing. Decode rejects
// envelopes carrying another format.
type Tagged[V any] struct {
	Inner FormattedCodec[V]
}

func (c Tagged[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return wire.EncodeValue(c.Inner.Format(), b), nil
}

func (c Tagged[V]) Decode(b []byte) (V, error) {
	var zero V
	format, payload, err := wire.DecodeValue(b)
	if err != nil {
		return zero, err
	}
	if want := c.Inner.Format(); format != want {
		return zero, fmt.Errorf("codec: format %q, want %q", format, want)
	}
	return c.Inner.Decode(payload)
}
