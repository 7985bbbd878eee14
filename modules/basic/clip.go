package basic

import (
	"encoding/binary"
	"math"

	"github.com/specialistvlad/traitgraph/internal/trait"
)

// Clip advances a playback time by its rate every update. Its instance data
// is the current time in seconds.
type Clip struct{}

// ClipDescriptor is Clip's registration.
var ClipDescriptor = trait.Descriptor{
	Name: "Clip",
	Mode: trait.ModeBase,
	Fields: []trait.Field{
		{Name: "clip", Kind: trait.KindObject},
		{Name: "length", Kind: trait.KindFloat32},
		{Name: "loop", Kind: trait.KindBool},
		{Name: "rate", Kind: trait.KindFloat32, Latent: true},
	},
	InstanceSize:  4,
	InstanceAlign: 4,
	Impl:          Clip{},
}

func init() { trait.AutoRegister(ClipDescriptor) }

// Time returns the playback time stored in a Clip binding.
func Time(b trait.Binding) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b.Instance))
}

func setTime(b trait.Binding, t float32) {
	binary.LittleEndian.PutUint32(b.Instance, math.Float32bits(t))
}

func (Clip) Construct(b trait.Binding) { setTime(b, 0) }
func (Clip) Destruct(b trait.Binding)  { setTime(b, 0) }

func (Clip) Update(ctx trait.ExecutionContext, b trait.Binding) {
	t := Time(b) + float32(ctx.DeltaTime())*float32Value(b, "rate")
	length := float32Value(b, "length")
	if length > 0 {
		if loop, _ := b.Value("loop"); loop == true {
			t = float32(math.Mod(float64(t), float64(length)))
		} else {
			t = min(t, length)
		}
	}
	setTime(b, t)
}

// OnEvent rewinds the clip on "restart".
func (Clip) OnEvent(ctx trait.ExecutionContext, b trait.Binding, ev trait.Event) bool {
	if ev.EventName() != "restart" {
		return false
	}
	ctx.Logger().Debug("Clip restarted.", "node", b.Node, "time", Time(b))
	setTime(b, 0)
	return true
}

func float32Value(b trait.Binding, name string) float32 {
	v, _ := b.Value(name)
	f, _ := v.(float32)
	return f
}
