package scene

import "fleetglobe/internal/model"

// Dispatcher routes entity clicks, addressed by composite key, to the
// callback registered for the entity's kind. Nil callbacks are skipped.
type Dispatcher struct {
	OnAsset  func(id int64)
	OnPath   func(id int64)
	OnRegion func(id int64)
}

// Dispatch reports whether key was well formed and a callback ran.
func (d *Dispatcher) Dispatch(key string) bool {
	kind, id, err := model.ParseKey(key)
	if err != nil {
		return false
	}
	var fn func(int64)
	switch kind {
	case model.KindAsset:
		fn = d.OnAsset
	case model.KindPath:
		fn = d.OnPath
	case model.KindRegion:
		fn = d.OnRegion
	}
	if fn == nil {
		return false
	}
	fn(id)
	return true
}
