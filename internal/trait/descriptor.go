package trait

import (
	"fmt"
)

// Descriptor is the registered metadata of one trait type.
//
// When SharedSize is zero and Fields is non-empty the field offsets, size and
// alignment are computed with natural alignment at registration. Descriptors
// are copied into the registry; the registered copy must not be modified.
type Descriptor struct {
	UID  UID
	Name string
	Mode Mode

	SharedSize    uint32
	SharedAlign   uint32
	InstanceSize  uint32
	InstanceAlign uint32

	Fields []Field

	// Impl receives the capability calls. It must not hold per-node state.
	Impl any

	caps   Capability
	latent []int
}

// Capabilities returns the capability interfaces implemented by Impl.
func (d *Descriptor) Capabilities() Capability { return d.caps }

// NumLatentProperties returns how many fields are latent.
func (d *Descriptor) NumLatentProperties() int { return len(d.latent) }

// LatentFields returns the latent fields in declaration order.
func (d *Descriptor) LatentFields() []Field {
	out := make([]Field, len(d.latent))
	for i, idx := range d.latent {
		out[i] = d.Fields[idx]
	}
	return out
}

// LatentValuesSize is the number of instance bytes needed to cache every
// latent value, packed at natural alignment.
func (d *Descriptor) LatentValuesSize() (uint32, uint32) {
	_, size, align := LayoutFields(d.LatentFields())
	if len(d.latent) == 0 {
		return 0, 1
	}
	return size, align
}

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (d *Descriptor) latentIndex(name string) int {
	for i, idx := range d.latent {
		if d.Fields[idx].Name == name {
			return i
		}
	}
	return -1
}

// prepare fills derived values and validates the layout.
func (d *Descriptor) prepare() error {
	if d.Name == "" {
		return fmt.Errorf("trait descriptor has no name")
	}
	if d.UID == InvalidUID {
		d.UID = MakeUID(d.Name)
	}
	if d.Mode != ModeBase && d.Mode != ModeAdditive {
		return fmt.Errorf("trait '%s': unknown mode %d", d.Name, d.Mode)
	}

	fields := make([]Field, len(d.Fields))
	copy(fields, d.Fields)
	if d.SharedSize == 0 && len(fields) > 0 {
		fields, d.SharedSize, d.SharedAlign = LayoutFields(fields)
	}
	d.Fields = fields
	if d.SharedAlign == 0 {
		d.SharedAlign = 1
	}
	if d.InstanceAlign == 0 {
		d.InstanceAlign = 1
	}
	if !isPow2(d.SharedAlign) || !isPow2(d.InstanceAlign) {
		return fmt.Errorf("trait '%s': alignment must be a power of two", d.Name)
	}

	seen := make(map[string]struct{}, len(fields))
	d.latent = d.latent[:0]
	for i, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("trait '%s': duplicate field '%s'", d.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Kind.Size() == 0 {
			return fmt.Errorf("trait '%s': field '%s' has unknown kind", d.Name, f.Name)
		}
		if f.Offset%f.Kind.Align() != 0 {
			return fmt.Errorf("trait '%s': field '%s' is misaligned at offset %d", d.Name, f.Name, f.Offset)
		}
		if f.Offset+f.Kind.Size() > d.SharedSize {
			return fmt.Errorf("trait '%s': field '%s' overruns shared size %d", d.Name, f.Name, d.SharedSize)
		}
		if f.Latent {
			if f.Kind.IsReference() {
				return fmt.Errorf("trait '%s': reference field '%s' cannot be latent", d.Name, f.Name)
			}
			d.latent = append(d.latent, i)
		}
	}
	d.caps = capabilitiesOf(d.Impl)
	return nil
}

// sameAs reports whether two prepared descriptors describe the same trait.
func (d *Descriptor) sameAs(o *Descriptor) bool {
	if d.UID != o.UID || d.Name != o.Name || d.Mode != o.Mode ||
		d.SharedSize != o.SharedSize || d.SharedAlign != o.SharedAlign ||
		d.InstanceSize != o.InstanceSize || d.InstanceAlign != o.InstanceAlign ||
		len(d.Fields) != len(o.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i] != o.Fields[i] {
			return false
		}
	}
	return true
}

func isPow2(v uint32) bool { return v != 0 && v&(v-1) == 0 }
