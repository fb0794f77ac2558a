package core

import (
	"errors"
	"testing"

	"zonetime/internal/types"
)

type zoneBody struct {
	ZoneID       string `validate:"required,zone_id"`
	BackfillDays int    `validate:"min=0,max=3650"`
}

func TestValidateStruct(t *testing.T) {
	v := NewValidator(testLogger())

	tests := []struct {
		name      string
		in        zoneBody
		wantCode  types.ErrorCode
		wantField string
	}{
		{name: "valid", in: zoneBody{ZoneID: "zone.living_room", BackfillDays: 30}},
		{name: "missing id", in: zoneBody{}, wantCode: types.ErrCodeValidationMissingField, wantField: "ZoneID"},
		{name: "not a zone", in: zoneBody{ZoneID: "person.alice"}, wantCode: types.ErrCodeValidationInvalidZone, wantField: "ZoneID"},
		{name: "bare prefix", in: zoneBody{ZoneID: "zone."}, wantCode: types.ErrCodeValidationInvalidZone, wantField: "ZoneID"},
		{name: "uppercase", in: zoneBody{ZoneID: "zone.Home"}, wantCode: types.ErrCodeValidationInvalidZone, wantField: "ZoneID"},
		{name: "negative backfill", in: zoneBody{ZoneID: "zone.home", BackfillDays: -1}, wantCode: types.ErrCodeValidationInvalidZone, wantField: "BackfillDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.in)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("err = %v, want AppError", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", appErr.Code, tt.wantCode)
			}
			fields, _ := appErr.Details["fields"].([]ValidationError)
			if len(fields) != 1 || fields[0].Field != tt.wantField {
				t.Errorf("fields = %+v, want one for %s", fields, tt.wantField)
			}
			if appErr.HTTPStatus() != 400 {
				t.Errorf("status = %d, want 400", appErr.HTTPStatus())
			}
		})
	}
}
