// Package nodetemplate computes and caches the memory layout of nodes.
//
// A node is an ordered stack of traits. Its template records where each
// trait's shared data, latent-handle table, instance data and cached latent
// values live, and which traits implement each capability. Templates are
// deduplicated by a hash of their trait UID sequence.
package nodetemplate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/traitgraph/internal/trait"
)

var (
	// ErrUnknownTrait is returned when a UID does not resolve in the catalog.
	ErrUnknownTrait = errors.New("unknown trait")
	// ErrEmptyTemplate is returned for a node without traits.
	ErrEmptyTemplate = errors.New("node has no traits")
	// ErrInvalidComposition is returned when a node does not start with a
	// base trait.
	ErrInvalidComposition = errors.New("invalid trait composition")
)

// MaxTraits is the largest number of traits a node can stack.
const MaxTraits = 255

// TraitLayout is the placement of one trait inside a node.
type TraitLayout struct {
	Descriptor *trait.Descriptor

	SharedOffset uint32
	SharedSize   uint32

	// LatentHandlesOffset is relative to the node's shared data and is only
	// meaningful when NumLatent > 0.
	LatentHandlesOffset uint32
	NumLatent           int

	InstanceOffset uint32
	InstanceSize   uint32

	// LatentValuesOffset is where evaluated latent values are cached in the
	// node instance data.
	LatentValuesOffset uint32
}

// UID returns the trait's UID.
func (l TraitLayout) UID() trait.UID { return l.Descriptor.UID }

// Template is the immutable layout of one trait composition.
type Template struct {
	UID    uint32
	Traits []TraitLayout

	SharedSize    uint32
	SharedAlign   uint32
	InstanceSize  uint32
	InstanceAlign uint32

	// interfaces maps a capability to the trait indices implementing it,
	// topmost trait first.
	interfaces map[trait.Capability][]uint8
}

// NumTraits returns the number of traits in the node.
func (t *Template) NumTraits() int { return len(t.Traits) }

// UIDs returns the trait UID sequence the template was built from.
func (t *Template) UIDs() []trait.UID {
	out := make([]trait.UID, len(t.Traits))
	for i, l := range t.Traits {
		out[i] = l.UID()
	}
	return out
}

// Implementers returns the indices of traits implementing c, topmost first.
func (t *Template) Implementers(c trait.Capability) []uint8 {
	return t.interfaces[c]
}

// Hash computes the template UID for a trait sequence.
func Hash(uids []trait.UID) uint32 {
	buf := make([]byte, 4*len(uids))
	for i, uid := range uids {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(uid))
	}
	sum := xxhash.Sum64(buf)
	return uint32(sum) ^ uint32(sum>>32)
}

// Build computes the layout for an ordered trait sequence. It does not cache
// the result; use Registry.FindOrAdd for deduplicated templates.
func Build(reg *trait.Registry, uids []trait.UID) (*Template, error) {
	if len(uids) == 0 {
		return nil, ErrEmptyTemplate
	}
	if len(uids) > MaxTraits {
		return nil, fmt.Errorf("%w: %d traits exceed %d", ErrInvalidComposition, len(uids), MaxTraits)
	}

	tpl := &Template{
		UID:           Hash(uids),
		Traits:        make([]TraitLayout, len(uids)),
		SharedAlign:   1,
		InstanceAlign: 1,
		interfaces:    make(map[trait.Capability][]uint8),
	}

	var shared, instance uint32
	for i, uid := range uids {
		d, ok := reg.Find(uid)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTrait, uid)
		}
		if i == 0 && d.Mode != trait.ModeBase {
			return nil, fmt.Errorf("%w: first trait '%s' is %s", ErrInvalidComposition, d.Name, d.Mode)
		}

		l := TraitLayout{Descriptor: d, SharedSize: d.SharedSize, InstanceSize: d.InstanceSize}

		l.SharedOffset = trait.AlignUp(shared, d.SharedAlign)
		shared = l.SharedOffset + d.SharedSize
		tpl.SharedAlign = max(tpl.SharedAlign, d.SharedAlign)

		if n := d.NumLatentProperties(); n > 0 {
			l.NumLatent = n
			l.LatentHandlesOffset = trait.AlignUp(shared, trait.LatentHandleAlign)
			shared = l.LatentHandlesOffset + uint32(n)*trait.LatentHandleSize
			tpl.SharedAlign = max(tpl.SharedAlign, trait.LatentHandleAlign)
		}

		l.InstanceOffset = trait.AlignUp(instance, d.InstanceAlign)
		instance = l.InstanceOffset + d.InstanceSize
		tpl.InstanceAlign = max(tpl.InstanceAlign, d.InstanceAlign)

		if l.NumLatent > 0 {
			size, align := d.LatentValuesSize()
			l.LatentValuesOffset = trait.AlignUp(instance, align)
			instance = l.LatentValuesOffset + size
			tpl.InstanceAlign = max(tpl.InstanceAlign, align)
		}

		tpl.Traits[i] = l
	}

	tpl.SharedSize = trait.AlignUp(shared, tpl.SharedAlign)
	tpl.InstanceSize = trait.AlignUp(instance, tpl.InstanceAlign)

	for _, c := range trait.Capabilities {
		for i := len(tpl.Traits) - 1; i >= 0; i-- {
			if tpl.Traits[i].Descriptor.Capabilities().Has(c) {
				tpl.interfaces[c] = append(tpl.interfaces[c], uint8(i))
			}
		}
	}
	return tpl, nil
}

// LatentValueOffset returns where latent property n of trait i is cached,
// relative to the node instance data.
func (t *Template) LatentValueOffset(i, n int) uint32 {
	l := t.Traits[i]
	fields, _, _ := trait.LayoutFields(l.Descriptor.LatentFields())
	return l.LatentValuesOffset + fields[n].Offset
}
