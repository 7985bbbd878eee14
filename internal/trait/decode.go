package trait

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeFields reads every field of a trait's shared data into a map keyed by
// field name.
func DecodeFields(d *Descriptor, shared []byte) map[string]any {
	out := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		if int(f.Offset+f.Kind.Size()) > len(shared) {
			continue
		}
		out[f.Name] = Decode(f.Kind, shared[f.Offset:])
	}
	return out
}

// DecodeInto decodes a trait's shared data into a struct. Struct fields are
// matched by `trait` tags, falling back to case-insensitive names.
func DecodeInto(d *Descriptor, shared []byte, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "trait",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("trait '%s': %w", d.Name, err)
	}
	if err := dec.Decode(DecodeFields(d, shared)); err != nil {
		return fmt.Errorf("trait '%s': decoding shared data: %w", d.Name, err)
	}
	return nil
}
