// Handles all sorts of custom data validations happening in Agora.

package validation

import (
	"regexp"
	"strings"
	"sync"

	"github.com/asaskevich/govalidator"
)

// Room ids are thread ids or user:<name> scopes.
var roomPattern = regexp.MustCompile(`^(user:)?[A-Za-z0-9_.\-]+$`)

var once sync.Once

// This function registers custom validation tags to be used as annotations in struct.
// After registering and adding the annotation, govalidator.ValidateStruct will trigger the validation.
// Safe to call from every constructor that relies on the tags.
func RegisterCustomValidations() {
	once.Do(func() {
		// This custom validation checks if there's any spaces in the input string.
		govalidator.TagMap["nospace"] = govalidator.Validator(func(str string) bool {
			return !strings.ContainsAny(str, " \t\n")
		})
		// This custom validation checks the room / thread identifier format.
		govalidator.TagMap["roomid"] = govalidator.Validator(func(str string) bool {
			return roomPattern.MatchString(str)
		})
	})
}

// Validate runs govalidator against v and returns the flattened list of field errors, nil when valid.
func Validate(v any) []error {
	RegisterCustomValidations()
	if _, valerr := govalidator.ValidateStruct(v); valerr != nil {
		if errs, ok := valerr.(govalidator.Errors); ok {
			return errs.Errors()
		}
		return []error{valerr}
	}
	return nil
}
