// Copyright (C) 2026 Founders Day Collective (dev@foundersday.events)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	tierCodeRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{1,31}$`)
	slugRe     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)
)

// RegisterValidations adds the custom binding validations used by the
// request types in this package. Call once at startup with gin's
// binding engine.
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("tiercode", func(fl validator.FieldLevel) bool {
		return tierCodeRe.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRe.MatchString(fl.Field().String())
	})
}

// ValidTierCode reports whether s is an acceptable tier code
// (uppercase alphanumeric plus dashes, 2-32 chars).
func ValidTierCode(s string) bool {
	return tierCodeRe.MatchString(s)
}

// ValidSlug reports whether s is an acceptable content slug
// (lowercase alphanumeric plus dashes, 2-64 chars).
func ValidSlug(s string) bool {
	return slugRe.MatchString(s)
}
