package models

// ConversionVariable is a row of the spx_conversion_variables table.
type ConversionVariable struct {
	VariableID         int    `json:"variableId"`
	AdvertiserID       int    `json:"advertiserId"`
	Name               string `json:"name"`
	IgnoreRequestValue bool   `json:"ignoreRequestValue"`
}
