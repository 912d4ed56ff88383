package serializer

// Format identifies a serializer implementation by name, e.g. for
// configuration and CLI flags.
type Format string

const (
	FormatJSON Format = "json"
	FormatGOB  Format = "gob"
)

// ISerializer is the interface for all envelope serializers used by the
// preference layer. Implementations must be stateless and safe for
// concurrent use.
type ISerializer interface {
	// Serialize serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into the value pointed to by v
	// It returns an error if any
	Deserialize(b []byte, v any) error
	// Format returns the name of the serialization format
	Format() Format
}
