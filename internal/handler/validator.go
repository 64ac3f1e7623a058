package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// RequestValidator adapts validator/v10 to echo.Validator.  Field names in
// errors are the JSON names.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator returns a RequestValidator with the custom menu_category tag
// registered.
func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("menu_category", func(fl validator.FieldLevel) bool {
		return model.ValidCategory(fl.Field().String())
	})
	return &RequestValidator{v: v}
}

func (r *RequestValidator) Validate(i any) error {
	return r.v.Struct(i)
}

// bindValid binds the request into dst and runs the echo validator.  The
// returned error is already a client-facing message.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return errors.New("invalid body")
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		// drop the root struct name: "createReservationReq.menus[0].menuId"
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "menu_category":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", field, strings.Join(model.MenuCategories, ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
