package services

import "errors"

// Service errors
var (
	ErrDatasetUnavailable = errors.New("cleaned dataset is no longer available")
)
