package moderation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/lexicon/pkg/models"
)

// entryValidate checks entry content using the struct tags on models.Entry.
var entryValidate *validator.Validate

func init() {
	entryValidate = validator.New()
	_ = entryValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func validateEntry(op string, e models.Entry) error {
	if err := entryValidate.Struct(e); err != nil {
		return validation(op, err, "invalid entry")
	}
	return nil
}
