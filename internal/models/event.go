package models

import "time"

// ChangeEvent is published to the broker after a successful Rockerbox client
// mutation so downstream consumers can refresh their view of the config.
type ChangeEvent struct {
	EventID      string    `json:"event_id"`
	AdvertiserID int       `json:"advertiser_id"`
	Action       string    `json:"action"` // insert, update, delete
	RbAdvID      string    `json:"rb_adv_id,omitempty"`
	At           time.Time `json:"at"`
}
