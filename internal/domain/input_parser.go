package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Patient record field names
const (
	FieldPatientID            = "patient_id"
	FieldPopulation           = "population"
	FieldAge                  = "age"
	FieldPrEPStatus           = "current_prep_status"
	FieldBarriers             = "barriers"
	FieldHealthcareSetting    = "healthcare_setting"
	FieldInsuranceStatus      = "insurance_status"
	FieldRecentHIVTest        = "recent_hiv_test"
	FieldTransportationAccess = "transportation_access"
	FieldChildcareNeeds       = "childcare_needs"
)

// ParsePatient builds a PatientProfile from a flat patient record as found in
// JSON input files or CSV rows. Barriers may be a list or a comma-joined
// string; booleans may be bools or "true"/"1"/"yes"; age may be a number or
// a numeric string. Keys starting with an underscore are ignored.
//
// Only the shape of the record is checked here. Whether population, barrier
// and setting keys exist is decided against a Configuration by the engine.
func ParsePatient(record map[string]any) (PatientProfile, error) {
	profile := PatientProfile{
		HealthcareSetting:    DefaultHealthcareSetting,
		InsuranceStatus:      DefaultInsuranceStatus,
		TransportationAccess: true,
	}

	var err error
	if profile.Population, err = requiredString(record, FieldPopulation); err != nil {
		return PatientProfile{}, err
	}

	rawAge, ok := record[FieldAge]
	if !ok {
		return PatientProfile{}, NewValidationError(FieldAge, "field is required", nil)
	}
	if profile.Age, err = parseAge(rawAge); err != nil {
		return PatientProfile{}, err
	}

	status, err := requiredString(record, FieldPrEPStatus)
	if err != nil {
		return PatientProfile{}, err
	}
	profile.PrEPStatus = PrEPStatus(status)
	if !profile.PrEPStatus.IsValid() {
		return PatientProfile{}, &ValidationError{
			Field:   FieldPrEPStatus,
			Message: fmt.Sprintf("%s %q (want naive, oral_prep or discontinued_oral)", ErrInvalidPrEPStatus, status),
			Value:   status,
			Err:     ErrInvalidPrEPStatus,
		}
	}

	if id, ok, err := optionalString(record, FieldPatientID); err != nil {
		return PatientProfile{}, err
	} else if ok {
		profile.PatientID = id
	}

	if raw, ok := record[FieldBarriers]; ok {
		if profile.Barriers, err = parseBarriers(raw); err != nil {
			return PatientProfile{}, err
		}
	}

	if setting, ok, err := optionalString(record, FieldHealthcareSetting); err != nil {
		return PatientProfile{}, err
	} else if ok && setting != "" {
		profile.HealthcareSetting = setting
	}

	if insurance, ok, err := optionalString(record, FieldInsuranceStatus); err != nil {
		return PatientProfile{}, err
	} else if ok && insurance != "" {
		profile.InsuranceStatus = InsuranceStatus(insurance)
		if !profile.InsuranceStatus.IsValid() {
			return PatientProfile{}, &ValidationError{
				Field:   FieldInsuranceStatus,
				Message: fmt.Sprintf("%s %q", ErrInvalidInsuranceStatus, insurance),
				Value:   insurance,
				Err:     ErrInvalidInsuranceStatus,
			}
		}
	}

	flags := []struct {
		field string
		dst   *bool
	}{
		{FieldRecentHIVTest, &profile.RecentHIVTest},
		{FieldTransportationAccess, &profile.TransportationAccess},
		{FieldChildcareNeeds, &profile.ChildcareNeeds},
	}
	for _, f := range flags {
		raw, ok := record[f.field]
		if !ok || raw == nil {
			continue
		}
		if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		v, err := parseBool(f.field, raw)
		if err != nil {
			return PatientProfile{}, err
		}
		*f.dst = v
	}

	return profile, nil
}

// ParsePatientJSON decodes a JSON object and passes it to ParsePatient.
func ParsePatientJSON(data []byte) (PatientProfile, error) {
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return PatientProfile{}, fmt.Errorf("invalid patient JSON: %w", err)
	}
	return ParsePatient(record)
}

func requiredString(record map[string]any, field string) (string, error) {
	v, ok, err := optionalString(record, field)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", NewValidationError(field, "field is required", nil)
	}
	return v, nil
}

func optionalString(record map[string]any, field string) (string, bool, error) {
	raw, ok := record[field]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, NewValidationError(field, "must be a string", raw)
	}
	return strings.TrimSpace(s), true, nil
}

func parseAge(raw any) (int, error) {
	var f float64
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		f = v
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, NewValidationError(FieldAge, "must be a number", raw)
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, NewValidationError(FieldAge, "must be a number", raw)
		}
		f = n
	default:
		return 0, NewValidationError(FieldAge, "must be a number", raw)
	}
	if f != math.Trunc(f) {
		return 0, NewValidationError(FieldAge, "must be a whole number", raw)
	}
	if f < 0 {
		return 0, NewValidationError(FieldAge, "must not be negative", raw)
	}
	return int(f), nil
}

func parseBarriers(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return SplitBarriers(v), nil
	case []string:
		out := make([]string, 0, len(v))
		for _, b := range v {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, NewValidationError(FieldBarriers, "barrier keys must be strings", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, NewValidationError(FieldBarriers, "must be a list or a comma-separated string", raw)
	}
}

// SplitBarriers splits a comma-joined barrier list, dropping blanks.
func SplitBarriers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(field string, raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, nil
		default:
			return false, nil
		}
	default:
		return false, NewValidationError(field, "must be a boolean", raw)
	}
}
