package nodetemplate

import (
	"fmt"
	"io"
)

// TemplateBytes returns the approximate memory held by the cached templates.
func (r *Registry) TemplateBytes() int {
	total := 0
	for _, tpl := range r.List() {
		total += templateHeaderBytes + len(tpl.Traits)*traitLayoutBytes
	}
	return total
}

const (
	templateHeaderBytes = 24
	traitLayoutBytes    = 32
)

// Dump writes the layout of every cached template.
func (r *Registry) Dump(w io.Writer) error {
	list := r.List()
	if _, err := fmt.Fprintf(w, "%d node templates, %d bytes\n", len(list), r.TemplateBytes()); err != nil {
		return err
	}
	for _, tpl := range list {
		if err := DumpTemplate(w, tpl); err != nil {
			return err
		}
	}
	return nil
}

// DumpTemplate writes one template's layout.
func DumpTemplate(w io.Writer, tpl *Template) error {
	_, err := fmt.Fprintf(w, "template 0x%08x: %d traits, shared %d (align %d), instance %d (align %d)\n",
		tpl.UID, tpl.NumTraits(), tpl.SharedSize, tpl.SharedAlign, tpl.InstanceSize, tpl.InstanceAlign)
	if err != nil {
		return err
	}
	for i, l := range tpl.Traits {
		d := l.Descriptor
		_, err := fmt.Fprintf(w, "  [%d] %s %s (%s): shared @%d+%d, latent @%d x%d, instance @%d+%d\n",
			i, d.UID, d.Name, d.Mode,
			l.SharedOffset, l.SharedSize,
			l.LatentHandlesOffset, l.NumLatent,
			l.InstanceOffset, l.InstanceSize)
		if err != nil {
			return err
		}
	}
	return nil
}
