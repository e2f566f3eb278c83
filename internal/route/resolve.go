package route

import "fleetglobe/internal/model"

// Resolve returns one path per active order, in order sequence. A persisted
// route with points is used as is; otherwise a fallback is synthesized.
// Orders that can be neither matched nor synthesized are left out.
func Resolve(orders []model.Order, routes []model.Path, assets []model.Asset) []model.Path {
	byOrder := make(map[int64]model.Path, len(routes))
	for _, r := range routes {
		if len(r.Points) > 0 {
			byOrder[r.ID] = r
		}
	}
	out := make([]model.Path, 0, len(orders))
	for _, o := range orders {
		if !o.Active() {
			continue
		}
		if p, ok := byOrder[o.ID]; ok {
			out = append(out, p)
			continue
		}
		if p, ok := Synthesize(o, assets); ok {
			out = append(out, p)
		}
	}
	return out
}
