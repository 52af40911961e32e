package layercache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
//
// layer is the layer's name, or "#<index>" for anonymous layers.
type Hooks interface {
	// Get found the key at layer index.
	LayerHit(layer string, index int)
	// Get found the key in no layer.
	Miss()

	// A value found at a slower layer was copied into layer index.
	Populated(layer string, index int)
	// Copying a value into layer index failed (error or refusal).
	PopulateFailed(layer string, index int, err error)

	// A provider returned an error; op ∈ {"get", "set", "del", "has", "clear", "close"}.
	// The error was absorbed and reported to the caller as false / miss.
	LayerFault(layer, op string, err error)

	// Provider returned ok=false on Set (backpressure/eviction).
	SetRejected(layer, storageKey string)

	// A stored entry was deleted on read.
	// reason ∈ {"value_decode"}
	SelfHeal(layer, storageKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) LayerHit(string, int)              {}
func (NopHooks) Miss()                             {}
func (NopHooks) Populated(string, int)             {}
func (NopHooks) PopulateFailed(string, int, error) {}
func (NopHooks) LayerFault(string, string, error)  {}
func (NopHooks) SetRejected(string, string)        {}
func (NopHooks) SelfHeal(string, string, string)   {}
