package cache

// Event is reported to an [Observer] as cache operations complete.
type Event uint8

const (
	EventHit Event = iota
	EventSentinelHit
	EventMiss
	EventLoad
	EventDecodeError
	EventStoreError
)

func (e Event) String() string {
	switch e {
	case EventHit:
		return "hit"
	case EventSentinelHit:
		return "sentinel_hit"
	case EventMiss:
		return "miss"
	case EventLoad:
		return "load"
	case EventDecodeError:
		return "decode_error"
	case EventStoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

// Observer receives cache events. It is called synchronously and must not block.
type Observer func(name string, ev Event)
