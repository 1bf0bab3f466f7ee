package media

import (
	"fmt"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/validation"
)

type linkSchema struct {
	Name string `validate:"required,min=1,max=255"`
	URL  string `validate:"required,max=2048,httpurl"`
}

type embedSchema struct {
	Name string `validate:"required,min=1,max=255"`
	URL  string `validate:"required,max=2048,httpsurl"`
}

type fileSchema struct {
	Name string `validate:"required,min=1,max=255"`
	URL  string `validate:"required,max=1024,blobkey"`
}

// ValidateSchema checks item against the rules of its type.
func ValidateSchema(item *domain.NewMediaItem) error {
	switch item.Type {
	case domain.MediaTypeLink:
		return validation.Struct(linkSchema{Name: item.Name, URL: item.URL})
	case domain.MediaTypeEmbed:
		return validation.Struct(embedSchema{Name: item.Name, URL: item.URL})
	case domain.MediaTypeFile:
		return validation.Struct(fileSchema{Name: item.Name, URL: item.URL})
	default:
		return fmt.Errorf("%w: unknown media type %q", domain.ErrValidation, item.Type)
	}
}
