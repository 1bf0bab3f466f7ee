// Package validation wraps go-playground/validator with the tags used by
// request payloads and maps failures onto domain.ErrValidation.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/weiawesome/sync-party/internal/domain"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared instance with custom tags registered:
//
//	username  letters, digits, '_', '.', '-'
//	httpurl   absolute http or https URL with a host
//	httpsurl  absolute https URL with a host
//	blobkey   relative slash-separated key without ".." segments
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		must(v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		}))
		must(v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
			return hasScheme(fl.Field().String(), "http", "https")
		}))
		must(v.RegisterValidation("httpsurl", func(fl validator.FieldLevel) bool {
			return hasScheme(fl.Field().String(), "https")
		}))
		must(v.RegisterValidation("blobkey", func(fl validator.FieldLevel) bool {
			return IsBlobKey(fl.Field().String())
		}))
		instance = v
	})
	return instance
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s and wraps any failure in domain.ErrValidation.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(parts, ","))
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return true
		}
	}
	return false
}

// IsBlobKey reports whether k is a safe relative storage key.
func IsBlobKey(k string) bool {
	if k == "" || strings.HasPrefix(k, "/") || strings.Contains(k, "\\") || strings.Contains(k, "://") {
		return false
	}
	for _, seg := range strings.Split(k, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return path.Clean(k) == k
}
