package model

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

var (
	validate = validator.New()

	labNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	validate.RegisterValidation("labname", func(fl validator.FieldLevel) bool {
		return labNamePattern.MatchString(fl.Field().String())
	})
}

// ValidLabName reports whether name contains only letters, digits, '_' and '-'.
func ValidLabName(name string) bool {
	return labNamePattern.MatchString(name)
}

// ValidateLab checks a lab record before it is persisted.
func ValidateLab(l *Lab) error {
	if err := structErrors(validate.Struct(l)); err != nil {
		return err
	}
	if l.Type != LabContainerlab && (l.RemoteHost != "" || l.RemoteUser != "") {
		return util.NewValidationError("remote containerlab settings require lab_type containerlab")
	}
	return nil
}

// ValidateHost checks a host record before it is persisted.
func ValidateHost(h *Host) error {
	return structErrors(validate.Struct(h))
}

// ValidateLink checks a link record, including non-negative impairments.
func ValidateLink(l *Link) error {
	return structErrors(validate.Struct(l))
}

// structErrors flattens validator output into a util.ValidationError.
func structErrors(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var vb util.ValidationBuilder
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			vb.AddErrorf("%s is required", field)
		case "labname":
			vb.AddErrorf("%s %q: only letters, numbers, underscores and hyphens are allowed", field, fe.Value())
		case "oneof":
			vb.AddErrorf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
		case "min":
			vb.AddErrorf("%s must be >= %s, got %v", field, fe.Param(), fe.Value())
		default:
			vb.AddErrorf("%s failed %s", field, fe.Tag())
		}
	}
	return vb.Build()
}
