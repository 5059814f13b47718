// Package codecs handles JSON encoding of stored payloads, item blobs and
// queue messages. jsoniter is the default; the interface exists so callers
// can swap in a stricter codec without touching the stores.
package codecs

// Codec marshals and unmarshals values to and from bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
