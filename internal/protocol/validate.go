package protocol

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/donets/jtrack/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("ticket_status", func(fl validator.FieldLevel) bool {
		return domain.Status(fl.Field().String()).Valid()
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		t := sl.Current().Interface().(domain.Ticket)
		if t.ScheduledStartAt != nil && t.ScheduledEndAt != nil && *t.ScheduledEndAt < *t.ScheduledStartAt {
			sl.ReportError(t.ScheduledEndAt, "scheduledEndAt", "ScheduledEndAt", "gtefield_start", "")
		}
	}, domain.Ticket{})

	return v
}

// Validator exposes the configured engine so HTTP bindings share the same
// tags and field naming.
func Validator() *validator.Validate { return validate }

// Validate runs struct validation and converts failures to a
// *ValidationError keyed by JSON path.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return NewValidationError("", err.Error())
	}
	out := &ValidationError{}
	for _, fe := range ves {
		out.Add(fieldPath(fe.Namespace()), fieldReason(fe))
	}
	return out
}

// fieldPath drops the root type name and embedded struct segments from a
// validator namespace.
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if p == "Syncable" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func fieldReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uppercase":
		return "must be upper case"
	case "ticket_status":
		return fmt.Sprintf("unknown ticket status %q", fe.Value())
	case "gtefield_start":
		return "must not be before scheduledStartAt"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

func checkChangeSet[E domain.Entity](prefix string, cs *ChangeSet[E], ve *ValidationError) {
	seen := make(map[string]string)
	mark := func(id, path, list string) {
		if id == "" {
			return
		}
		if prev, ok := seen[id]; ok {
			ve.Add(path, fmt.Sprintf("duplicate id %q, already listed in %s", id, prev))
			return
		}
		seen[id] = list
	}
	for i, e := range cs.Created {
		if !isNil(e) {
			mark(e.Meta().ID, fmt.Sprintf("%s.created[%d].id", prefix, i), "created")
		}
	}
	for i, e := range cs.Updated {
		if !isNil(e) {
			mark(e.Meta().ID, fmt.Sprintf("%s.updated[%d].id", prefix, i), "updated")
		}
	}
	for i, id := range cs.Deleted {
		mark(id, fmt.Sprintf("%s.deleted[%d]", prefix, i), "deleted")
	}
}

func isNil(e any) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// ValidateChanges checks the cross-list invariant of every family.
func ValidateChanges(prefix string, c *Changes) error {
	ve := &ValidationError{}
	checkChangeSet(prefix+".tickets", &c.Tickets, ve)
	checkChangeSet(prefix+".ticketComments", &c.TicketComments, ve)
	checkChangeSet(prefix+".ticketAttachments", &c.TicketAttachments, ve)
	checkChangeSet(prefix+".paymentRecords", &c.PaymentRecords, ve)
	return ve.orNil()
}
