package mongodb

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

func TestToRaw_ConvertsBSONTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	raw := toRaw(bson.M{
		"_id":       oid,
		"patientId": "p1",
		"createdAt": primitive.NewDateTimeFromTime(created),
		"count":     int32(3),
		"extractedData": bson.M{
			"symptoms": bson.A{"fever", bson.D{{Key: "name", Value: "cough"}}},
		},
		"deleted": primitive.Null{},
	})

	if raw["_id"] != oid.Hex() {
		t.Errorf("_id = %v, want %s", raw["_id"], oid.Hex())
	}
	if ts, ok := raw["createdAt"].(time.Time); !ok || !ts.Equal(created) {
		t.Errorf("createdAt = %#v", raw["createdAt"])
	}
	if raw["count"] != int64(3) {
		t.Errorf("count = %#v", raw["count"])
	}
	if raw["deleted"] != nil {
		t.Errorf("deleted = %#v", raw["deleted"])
	}

	want := map[string]interface{}{
		"symptoms": []interface{}{"fever", map[string]interface{}{"name": "cough"}},
	}
	if !reflect.DeepEqual(raw["extractedData"], want) {
		t.Errorf("extractedData = %#v", raw["extractedData"])
	}
}

func TestToRaw_NormalizesLikeJSON(t *testing.T) {
	oid := primitive.NewObjectID()
	rec := record.Normalize(toRaw(bson.M{
		"_id":       oid,
		"userId":    "u1",
		"createdAt": primitive.NewDateTimeFromTime(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)),
		"extractedData": bson.M{
			"medications": bson.A{bson.M{"name": "Metformin"}},
		},
	}))

	if rec.ID != oid.Hex() || rec.SubjectID != "u1" || !rec.HasTimestamp {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(rec.Medications, []string{"Metformin"}) {
		t.Errorf("medications = %v", rec.Medications)
	}
}

func TestFromRaw_SetsID(t *testing.T) {
	doc := fromRaw("rx-1", record.Raw{"id": "rx-1", "patientId": "p1"})
	if doc["_id"] != "rx-1" || doc["patientId"] != "p1" {
		t.Errorf("doc = %v", doc)
	}
}
