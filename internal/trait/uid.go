package trait

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// UID is the stable identifier of a trait type.
type UID uint32

// InvalidUID is never assigned to a trait.
const InvalidUID UID = 0

// MakeUID derives a UID from a trait name.
func MakeUID(name string) UID {
	sum := xxhash.Sum64String(name)
	uid := UID(uint32(sum) ^ uint32(sum>>32))
	if uid == InvalidUID {
		uid = 1
	}
	return uid
}

func (u UID) String() string {
	return fmt.Sprintf("0x%08x", uint32(u))
}
