package enrollflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{2,15}$`)

// planStep is one entry of a progressive enrollment plan.
type planStep struct {
	field     FieldID
	skippable bool
}

// planSteps builds the ordered step plan for a verified identity. The plan
// only ever asks for fields still empty on the profile; a fully populated
// profile always yields an empty plan regardless of enrollment count.
func planSteps(profile *ProfileRecord, priorEnrollments int) []planStep {
	var record ProfileRecord
	if profile != nil {
		record = *profile
	}

	var plan []planStep

	appendEmpty := func(id FieldID, skippable bool) {
		if record.FieldEmpty(id) {
			plan = append(plan, planStep{field: id, skippable: skippable})
		}
	}

	switch {
	case priorEnrollments <= 0:
		appendEmpty(FieldFirstName, false)
		appendEmpty(FieldLastName, false)
		appendEmpty(FieldGender, false)
		appendEmpty(FieldSocialHandle, false)
	case priorEnrollments == 1:
		appendEmpty(FieldSocialHandle, false)
	default:
		appendEmpty(FieldPhone, true)
	}

	return plan
}

// validateField checks a single submitted field value against its format
// rules. Values are trimmed before validation.
func (e *Engine) validateField(id FieldID, value string) error {
	value = strings.TrimSpace(value)

	switch id {
	case FieldFirstName, FieldLastName, FieldGender, FieldSocialHandle:
		if value == "" {
			return fmt.Errorf("%w: %s", ErrFieldRequired, id)
		}
		return nil
	case FieldPhone:
		if value == "" {
			return fmt.Errorf("%w: %s", ErrFieldRequired, id)
		}
		if !phonePattern.MatchString(value) {
			return fmt.Errorf("%w: %s", ErrFieldFormat, id)
		}
		return nil
	case FieldBirthDate:
		_, err := e.validateBirthDate(value, e.config.Gate.MinSignupAge)
		return err
	default:
		return ErrStepUnknown
	}
}

// validateBirthDate parses an ISO date and enforces the [minAge, MaxAge]
// window against the current clock.
func (e *Engine) validateBirthDate(value string, minAge int) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s", ErrFieldRequired, FieldBirthDate)
	}

	born, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, ErrBirthDateInvalid
	}

	age := yearsSince(born, time.Now())
	if age < minAge || age > e.config.Gate.MaxAge {
		return time.Time{}, ErrAgeOutOfRange
	}

	return born, nil
}

func yearsSince(born, now time.Time) int {
	years := now.Year() - born.Year()
	anniversary := born.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// basicProfileFields is the completeness set checked before a returning
// non-staff identity may finalize.
var basicProfileFields = [...]FieldID{
	FieldFirstName,
	FieldLastName,
	FieldBirthDate,
	FieldPhone,
}

// basicProfileComplete reports whether every basic-profile field carries a
// non-blank value, merging pending wizard submissions over the stored record.
// Fields the user explicitly skipped during the current run are exempt; a
// skippable step must never be re-demanded by the completeness gate.
func basicProfileComplete(profile *ProfileRecord, pending map[FieldID]string, skipped map[FieldID]bool) bool {
	for _, id := range basicProfileFields {
		if skipped[id] {
			continue
		}
		if strings.TrimSpace(pending[id]) != "" {
			continue
		}
		if profile == nil || profile.FieldEmpty(id) {
			return false
		}
	}
	return true
}
