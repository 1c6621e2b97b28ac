package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/drfirst/rxinsight/internal/domain/record"
)

// toRaw converts a decoded document to plain Go values: nested documents
// become maps, arrays become slices, dates become time.Time and object ids
// become hex strings.
func toRaw(doc bson.M) record.Raw {
	out := make(record.Raw, len(doc))
	for k, v := range doc {
		out[k] = plain(v)
	}
	return out
}

func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = plain(e)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = plain(e)
		}
		return m
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.A:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = plain(e)
		}
		return s
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = plain(e)
		}
		return s
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return map[string]interface{}{"seconds": float64(t.T)}
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		return t.String()
	case int32:
		return int64(t)
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

// fromRaw prepares a record for storage under id.
func fromRaw(id string, doc record.Raw) bson.M {
	out := make(bson.M, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = id
	return out
}
