package overpass

import "fmt"

// FetchError reports a failed fetch for one region: transport failures,
// non-success statuses and malformed payloads all surface as this type.
type FetchError struct {
	Region string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("overpass: fetch %s: %v", e.Region, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
