package edgecache

import "github.com/fxamacker/cbor/v2"

// cborCodec implements storm's codec.MarshalUnmarshaler.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() (*cborCodec, error) {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	enc, err := encOptions.EncMode()
	if err != nil {
		return nil, err
	}

	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}

	return &cborCodec{enc: enc, dec: dec}, nil
}

func (c *cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *cborCodec) Unmarshal(b []byte, v any) error {
	return c.dec.Unmarshal(b, v)
}

func (c *cborCodec) Name() string {
	return "cbor"
}
