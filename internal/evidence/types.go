package evidence

// #region los

// LOS is the line-of-sight state reported by the sensor layer for one
// observation. Anything the sensor cannot answer maps to LOSUnknown.
type LOS string

const (
	LOSVisible LOS = "visible"
	LOSBlocked LOS = "blocked"
	LOSUnknown LOS = "unknown"
)

// ParseLOS maps a raw sensor string to a LOS value. Unrecognized input
// degrades to LOSUnknown rather than failing.
func ParseLOS(s string) LOS {
	switch LOS(s) {
	case LOSVisible, LOSBlocked:
		return LOS(s)
	default:
		return LOSUnknown
	}
}

// #endregion los

// #region kind

// Kind is the closed classification of entity kinds the tracker reasons
// about. The raw sensor tag is preserved separately on the Item; Kind is
// what classification policy keys on.
type Kind string

const (
	KindZombie    Kind = "zombie"
	KindSkeleton  Kind = "skeleton"
	KindCreeper   Kind = "creeper"
	KindSpider    Kind = "spider"
	KindWitch     Kind = "witch"
	KindEnderman  Kind = "enderman"
	KindWolf      Kind = "wolf"
	KindPlayer    Kind = "player"
	KindVillager  Kind = "villager"
	KindLivestock Kind = "livestock"
	KindItem      Kind = "item"
	KindUnknown   Kind = "unknown"
)

// kindTable is the closed set of recognized raw tags. Raw tags for passive
// farm animals collapse into KindLivestock.
var kindTable = map[string]Kind{
	"zombie":      KindZombie,
	"husk":        KindZombie,
	"drowned":     KindZombie,
	"skeleton":    KindSkeleton,
	"stray":       KindSkeleton,
	"creeper":     KindCreeper,
	"spider":      KindSpider,
	"cave_spider": KindSpider,
	"witch":       KindWitch,
	"enderman":    KindEnderman,
	"wolf":        KindWolf,
	"player":      KindPlayer,
	"villager":    KindVillager,
	"cow":         KindLivestock,
	"pig":         KindLivestock,
	"sheep":       KindLivestock,
	"chicken":     KindLivestock,
	"item":        KindItem,
}

// Kinds lists every value of the closed enum, in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindZombie, KindSkeleton, KindCreeper, KindSpider, KindWitch,
		KindEnderman, KindWolf, KindPlayer, KindVillager, KindLivestock,
		KindItem, KindUnknown,
	}
}

// IsKind reports whether s names a value of the closed enum.
func IsKind(s string) bool {
	for _, k := range Kinds() {
		if string(k) == s {
			return true
		}
	}
	return false
}

// ParseKind maps a raw sensor kind tag to the closed Kind enum.
// Unrecognized tags map to KindUnknown rather than being rejected, so a new
// mob type in the world never crashes the pipeline.
func ParseKind(raw string) Kind {
	if k, ok := kindTable[raw]; ok {
		return k
	}
	return KindUnknown
}

// #endregion kind

// #region item

// Item is one observation of one entity in one tick. Items are immutable
// once constructed; the tracker never writes through them.
//
// Positions and distance are pre-quantized by the sensor layer. Quantization
// bounds the state space and is what makes a stable scene produce zero
// deltas tick after tick.
type Item struct {
	EngineID   int64             `json:"engine_id"`
	Kind       string            `json:"kind"`
	KindEnum   Kind              `json:"kind_enum"`
	PosBucketX int               `json:"pos_bucket_x"`
	PosBucketY int               `json:"pos_bucket_y"`
	PosBucketZ int               `json:"pos_bucket_z"`
	DistBucket int               `json:"dist_bucket"`
	LOS        LOS               `json:"los"`
	Features   map[string]string `json:"features,omitempty"`
}

// #endregion item

// #region batch

// Batch is the per-tick unit of input from the sensor layer. TickID is
// monotonically non-decreasing across calls to a given tracker instance;
// this is part of the input contract, not a convention.
type Batch struct {
	TickID int64  `json:"tick_id"`
	Items  []Item `json:"items"`
}

// #endregion batch
