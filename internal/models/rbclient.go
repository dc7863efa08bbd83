package models

// RbClientConfig is the request body for Rockerbox client upserts.
type RbClientConfig struct {
	AdvertiserID int    `json:"advertiserId"`
	RbAdvID      string `json:"rbAdvId"`
}
