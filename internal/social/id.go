package social

import "github.com/google/uuid"

// uuidProvider issues the identifiers attached to comments appended to the
// local fallback store.
type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider backed by UUIDv7, so locally
// appended comment ids sort by creation time.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
