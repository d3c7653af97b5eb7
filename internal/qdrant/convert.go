package qdrant

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

func toPointStruct(p *Point) (*qdrant.PointStruct, error) {
	if _, err := uuid.Parse(p.ID); err != nil {
		return nil, fmt.Errorf("point id %q is not a UUID: %w", p.ID, err)
	}

	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload field %q: %w", k, err)
		}
		payload[k] = val
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payload,
	}, nil
}

// toValue converts a JSON-like Go value into a Qdrant payload value. Nested maps
// and slices are preserved so metadata round-trips unchanged.
func toValue(v any) (*qdrant.Value, error) {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}, nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return intValue(int64(val)), nil
	case int32:
		return intValue(int64(val)), nil
	case int64:
		return intValue(val), nil
	case uint32:
		return intValue(int64(val)), nil
	case float32:
		return doubleValue(float64(val)), nil
	case float64:
		return doubleValue(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return intValue(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return doubleValue(f), nil
	case map[string]any:
		fields := make(map[string]*qdrant.Value, len(val))
		for k, item := range val {
			converted, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = converted
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	case map[string]string:
		fields := make(map[string]*qdrant.Value, len(val))
		for k, item := range val {
			fields[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: item}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	case []any:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			converted, err := toValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			values[i] = converted
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			values[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: item}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", v)
	}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func doubleValue(f float64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}
}

func fromScoredPoint(p *qdrant.ScoredPoint) *ScoredPoint {
	return &ScoredPoint{
		ID:      pointID(p.GetId()),
		Payload: fromPayload(p.GetPayload()),
		Score:   p.GetScore(),
	}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

// fromValue is the inverse of toValue. Integers come back as int64 and doubles as
// float64; a whole double stays a float64.
func fromValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_StructValue:
		fields := val.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = fromValue(item)
		}
		return out
	case *qdrant.Value_ListValue:
		items := val.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}
