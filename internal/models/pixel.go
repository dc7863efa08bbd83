package models

import "fmt"

// Pixel is a row of the advertiser_smart_px_variables table: one smart pixel
// configuration owned by an advertiser. VariableID is assigned by the store
// on insert and immutable afterwards.
type Pixel struct {
	VariableID                  int    `json:"variableId"`
	AdvertiserID                int    `json:"advertiserId"`
	TrpxCallParameterDefaultsID int    `json:"trpxCallParameterDefaultsId"`
	Query                       string `json:"query"`
	QueryType                   int    `json:"queryType"`
	Active                      bool   `json:"active"`
	Endpoint                    string `json:"endpoint"`
}

// InfoString renders the fields worth having in a log line when a pixel looks
// wrong in the database.
func (p Pixel) InfoString() string {
	return fmt.Sprintf("{variableId=[%d]; advertiserId=[%d]; query=[%s]}", p.VariableID, p.AdvertiserID, p.Query)
}

// PixelListInfoString concatenates InfoString for every pixel in the list.
func PixelListInfoString(pixels []Pixel) string {
	str := ""
	for _, p := range pixels {
		str += "\t" + p.InfoString()
	}
	return str
}
