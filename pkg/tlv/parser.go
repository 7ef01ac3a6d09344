// Package tlv maps BER-TLV encoded card payloads onto Go structs using
// struct tags.
//
// PIV responses arrive as nested templates: a key-generation response is
// a 7F49 template holding the point in tag 86, a dynamic authentication
// exchange is a 7C template holding witness (80), challenge (81), and
// response (82) elements. Declaring those shapes as tagged structs keeps
// the protocol code free of index arithmetic:
//
//	type authTemplate struct {
//	    Witness  []byte `tlv:"80"`
//	    Response []byte `tlv:"82"`
//	}
package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshal parses raw BER-TLV data and maps it into a target struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps pre-decoded bertlv.TLV packets onto a
// target struct by matching `tlv:"<hex tag>"` field tags.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		tagHex := t.Field(i).Tag.Get("tlv")
		if tagHex == "" {
			continue
		}

		for _, packet := range packets {
			if !strings.EqualFold(packet.Tag, tagHex) {
				continue
			}
			if err := decodeToValue(packet, v.Field(i)); err != nil {
				return fmt.Errorf("tag %s: %w", tagHex, err)
			}
		}
	}

	return nil
}

// decodeToValue assigns one packet to a field: raw bytes for []byte
// fields, recursive template mapping for struct fields.
func decodeToValue(packet bertlv.TLV, field reflect.Value) error {
	if isByteSlice(field) {
		field.SetBytes(packetRawData(packet))
		return nil
	}

	if target, ok := structTarget(field); ok {
		if len(packet.TLVs) > 0 {
			return UnmarshalFromPackets(packet.TLVs, target.Interface())
		}
		return Unmarshal(packet.Value, target.Interface())
	}

	return fmt.Errorf("unsupported field kind %s", field.Kind())
}

// GetValue scans raw BER-TLV data for a tag and returns its payload.
// Constructed elements come back re-encoded so the caller can descend
// with another GetValue.
func GetValue(data []byte, tag uint) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, err
	}

	targetTag := fmt.Sprintf("%X", tag)
	for _, p := range packets {
		if strings.EqualFold(p.Tag, targetTag) {
			return packetRawData(p), nil
		}
	}
	return nil, fmt.Errorf("tag %s not found", targetTag)
}

// packetRawData flattens a packet back to bytes: leaves return their
// value, templates re-encode their children.
func packetRawData(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

// structTarget returns an addressable pointer for struct and
// pointer-to-struct fields, allocating nil pointers as needed.
func structTarget(field reflect.Value) (reflect.Value, bool) {
	if field.Kind() == reflect.Struct {
		return field.Addr(), true
	}
	if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return field, true
	}
	return reflect.Value{}, false
}
