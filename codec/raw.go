package codec

// Bytes is an identity codec for []byte values. Decode returns a copy, since
// providers may hand back slices of a buffer they reuse.
type Bytes struct{}

func (Bytes) Format() byte { return FormatBytes }

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	return append([]byte(nil), b...), nil
}

// String stores Go strings verbatim. By convention this assumes UTF-8 and
// performs no validation.
type String struct{}

func (String) Format() byte { return FormatString }

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
