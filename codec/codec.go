package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Format discriminators stored in the value envelope.
const (
	FormatString   byte = 's'
	FormatBytes    byte = 'b'
	FormatJSON     byte = 'j'
	FormatMsgpack  byte = 'm'
	FormatCBOR     byte = 'c'
	FormatProtobuf byte = 'p'
)

// Formatted is implemented by codecs that know their envelope discriminator.
type Formatted interface {
	Format() byte
}
