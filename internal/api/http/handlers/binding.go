package handlers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bind parses the JSON body into req and runs its validate tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", map[string]any{"reason": err.Error()})
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.NewInvalidInput("invalid payload", nil)
		}
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe.Namespace())] = fe.Tag()
		}
		return apperrors.NewInvalidInput("validation failed", fields)
	}
	return nil
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func staffParam(c *fiber.Ctx) (string, error) {
	id := strings.TrimSpace(c.Params("staffId"))
	if id == "" {
		return "", apperrors.NewInvalidInput("staff id is required", nil)
	}
	return id, nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
