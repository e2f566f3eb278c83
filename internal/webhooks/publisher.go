package webhooks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fleetglobe/internal/model"
)

// EventSelected is sent when a viewer clicks an entity on the globe.
const EventSelected = "entity.selected"

// Selection is the webhook body for EventSelected.
type Selection struct {
	Type string     `json:"type"`
	Kind model.Kind `json:"kind"`
	ID   int64      `json:"id"`
	TS   string     `json:"ts"`
}

// Publisher turns scene selections into queued webhook deliveries.
type Publisher struct {
	w   *Worker
	now func() time.Time
}

func NewPublisher(w *Worker) *Publisher {
	return &Publisher{w: w, now: time.Now}
}

// Selected queues a selection event. It never blocks.
func (p *Publisher) Selected(kind model.Kind, id int64) {
	if p == nil || p.w == nil {
		return
	}
	body, _ := json.Marshal(Selection{
		Type: EventSelected,
		Kind: kind,
		ID:   id,
		TS:   p.now().UTC().Format(time.RFC3339),
	})
	p.w.enqueue(delivery{ID: "evt_" + uuid.NewString(), EventType: EventSelected, Payload: body})
}
