// Package validation checks inbound event batches and match metadata before
// anything is persisted. A batch is accepted whole or rejected whole.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"demo-ingest/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// FieldError names one offending field of one record in a batch.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BatchError is returned when any record in a batch fails validation.
type BatchError struct {
	Fields []FieldError
}

func (e *BatchError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Error()
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// FieldNames lists the offending field paths, e.g. "data[2].player_1.hp_start".
func (e *BatchError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// UnknownEventError is the fixed rejection for an event name outside the known set.
type UnknownEventError struct {
	Name string
}

func (e *UnknownEventError) Error() string {
	names := make([]string, len(domain.EventNames))
	for i, n := range domain.EventNames {
		names[i] = string(n)
	}
	return fmt.Sprintf("unknown event name %q: must be one of %s", e.Name, strings.Join(names, ", "))
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("known_map", func(fl validator.FieldLevel) bool {
		m := fl.Field().String()
		for _, known := range domain.KnownMaps {
			if m == known {
				return true
			}
		}
		return false
	})
	v.RegisterStructValidation(gunfightVictor, domain.GunfightEvent{})
	return &Validator{validate: v}
}

// gunfightVictor requires the victor to be one of the two duelists.
func gunfightVictor(sl validator.StructLevel) {
	e := sl.Current().Interface().(domain.GunfightEvent)
	if e.VictorSteamID == "" {
		return
	}
	if e.VictorSteamID != e.Player1.SteamID && e.VictorSteamID != e.Player2.SteamID {
		sl.ReportError(e.VictorSteamID, "victor_steam_id", "VictorSteamID", "duelist", "")
	}
}

// ParseEventName resolves a path segment to a known event type.
func ParseEventName(name string) (domain.EventName, error) {
	n := domain.EventName(name)
	if !n.Valid() {
		return "", &UnknownEventError{Name: name}
	}
	return n, nil
}

// ValidateBatch decodes the raw `data` array for the named event type and
// validates every record. Records are returned in arrival order.
func (v *Validator) ValidateBatch(name domain.EventName, data []byte) ([]domain.Event, error) {
	if !name.Valid() {
		return nil, &UnknownEventError{Name: string(name)}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &BatchError{Fields: []FieldError{{Field: "data", Tag: "required", Message: "data is required"}}}
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, &BatchError{Fields: []FieldError{{Field: "data", Tag: "array", Message: "data must be an array of event records"}}}
	}
	if len(raws) == 0 {
		return nil, &BatchError{Fields: []FieldError{{Field: "data", Tag: "min", Param: "1", Message: "data must contain at least 1 record"}}}
	}

	events := make([]domain.Event, 0, len(raws))
	var fieldErrs []FieldError
	for i, raw := range raws {
		prefix := fmt.Sprintf("data[%d]", i)

		event, err := decodeEvent(name, raw)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: prefix, Tag: "decode", Message: err.Error()})
			continue
		}

		if errs := v.check(event, prefix); len(errs) > 0 {
			fieldErrs = append(fieldErrs, errs...)
			continue
		}
		events = append(events, event)
	}

	if len(fieldErrs) > 0 {
		return nil, &BatchError{Fields: fieldErrs}
	}
	return events, nil
}

// ValidateStruct validates any tagged struct and reports fields relative to prefix.
func (v *Validator) ValidateStruct(s interface{}, prefix string) error {
	if errs := v.check(s, prefix); len(errs) > 0 {
		return &BatchError{Fields: errs}
	}
	return nil
}

func (v *Validator) check(s interface{}, prefix string) []FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []FieldError{{Field: prefix, Tag: "unknown", Message: err.Error()}}
	}

	out := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		field := fieldPath(prefix, fe.Namespace())
		out[i] = FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translate(fe),
		}
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(prefix, namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	if prefix == "" {
		return namespace
	}
	return prefix + "." + namespace
}

func decodeEvent(name domain.EventName, raw json.RawMessage) (domain.Event, error) {
	switch name {
	case domain.EventGunfight:
		var e domain.GunfightEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("invalid gunfight record: %w", err)
		}
		return e, nil
	case domain.EventGrenade:
		var e domain.GrenadeEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("invalid grenade record: %w", err)
		}
		return e, nil
	case domain.EventDamage:
		var e domain.DamageEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("invalid damage record: %w", err)
		}
		return e, nil
	case domain.EventRound:
		var e domain.RoundEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("invalid round record: %w", err)
		}
		return e, nil
	}
	return nil, &UnknownEventError{Name: string(name)}
}

var messageTemplates = map[string]string{
	"required":  "is required",
	"known_map": "must be a known map",
	"unique":    "must not contain duplicates",
	"duelist":   "must be player_1 or player_2",
}

var messageWithParam = map[string]string{
	"oneof":    "must be one of: %s",
	"gte":      "must be greater than or equal to %s",
	"lte":      "must be less than or equal to %s",
	"gt":       "must be greater than %s",
	"lt":       "must be less than %s",
	"ltefield": "must not exceed %s",
}

func translate(fe validator.FieldError) string {
	if msg, ok := messageTemplates[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := messageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
