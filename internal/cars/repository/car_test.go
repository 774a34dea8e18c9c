package repository

import (
	"errors"
	"testing"

	carserrors "roadquest/internal/cars/errors"
	"roadquest/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

func TestFilter_ToBSON(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   bson.M
	}{
		{"empty matches everything", Filter{}, bson.M{}},
		{"owner", Filter{OwnerEmail: "o@x.io"}, bson.M{"owner_email": "o@x.io"}},
		{"availability", Filter{Availability: model.CarAvailable}, bson.M{"availability": "available"}},
		{"both", Filter{OwnerEmail: "o@x.io", Availability: model.CarUnavailable},
			bson.M{"owner_email": "o@x.io", "availability": "unavailable"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.toBSON()
			if len(got) != len(tt.want) {
				t.Fatalf("toBSON() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestToSetDocument_OnlySetFields(t *testing.T) {
	price := 52.5
	features := []string{"gps"}
	set, err := toSetDocument(&model.CarUpdate{DailyPrice: &price, Features: &features})
	if err != nil {
		t.Fatal(err)
	}

	if len(set) != 2 {
		t.Fatalf("set = %v, want exactly daily_price and features", set)
	}
	if set["daily_price"] != 52.5 {
		t.Errorf("daily_price = %v", set["daily_price"])
	}
	if _, ok := set["features"]; !ok {
		t.Error("features missing")
	}
	for _, forbidden := range []string{"_id", "owner_email", "booking_count", "created_at"} {
		if _, ok := set[forbidden]; ok {
			t.Errorf("%s must never be written by an update", forbidden)
		}
	}
}

func TestObjectIDFromHex(t *testing.T) {
	if _, err := objectIDFromHex("65a000000000000000000000"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	if _, err := objectIDFromHex("nope"); !errors.Is(err, carserrors.ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
}
