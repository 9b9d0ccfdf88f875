package tendril

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tendril-lang/tendril/internal/value"
)

// FromJSON decodes JSON text into a Value. Unlike json.Unmarshal into
// map[string]interface{}, it preserves object key insertion order (spec
// §2's Object is explicitly ordered) by walking encoding/json's
// token-based Decoder instead of building a map directly. Grounded on the
// teacher's own use of encoding/json in main.go's cmdInspect — the
// teacher decodes once with MarshalIndent for display; here we decode
// structurally, since we need the value on the other side, not just its
// printed form.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := value.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key token %v", keyTok)
				}
				v, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil { // consume closing '}'
				return Value{}, err
			}
			return value.ObjectValue(obj), nil
		case '[':
			var items []Value
			for dec.More() {
				v, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil { // consume closing ']'
				return Value{}, err
			}
			return value.ArrayFrom(items), nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return value.Number(f), nil
	case string:
		return value.String(t), nil
	case bool:
		return value.Bool(t), nil
	case nil:
		return value.Null(), nil
	default:
		return Value{}, fmt.Errorf("unexpected json token %T", t)
	}
}

// ToJSON encodes v as JSON, pretty-printed with a two-space indent to
// match the teacher's cmdInspect MarshalIndent(..., "", "  ") output.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, ""); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// writeJSON renders v with a fixed two-space-per-level indent, walking
// the value domain directly (rather than converting to
// map[string]interface{} and calling json.MarshalIndent) so object key
// order is preserved on the way out too.
func writeJSON(w io.Writer, v Value, indent string) error {
	switch v.Kind() {
	case value.KindNull:
		_, err := io.WriteString(w, "null")
		return err
	case value.KindBool:
		if v.Bool() {
			_, err := io.WriteString(w, "true")
			return err
		}
		_, err := io.WriteString(w, "false")
		return err
	case value.KindNumber:
		enc, err := json.Marshal(v.Number())
		if err != nil {
			return err
		}
		_, err = w.Write(enc)
		return err
	case value.KindString:
		enc, err := json.Marshal(v.Str())
		if err != nil {
			return err
		}
		_, err = w.Write(enc)
		return err
	case value.KindArray:
		items := v.Array()
		if len(items) == 0 {
			_, err := io.WriteString(w, "[]")
			return err
		}
		childIndent := indent + "  "
		if _, err := io.WriteString(w, "[\n"); err != nil {
			return err
		}
		for i, item := range items {
			if _, err := io.WriteString(w, childIndent); err != nil {
				return err
			}
			if err := writeJSON(w, item, childIndent); err != nil {
				return err
			}
			if i < len(items)-1 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, indent+"]")
		return err
	case value.KindObject:
		obj := v.Object()
		keys := []string{}
		if obj != nil {
			keys = obj.Keys()
		}
		if len(keys) == 0 {
			_, err := io.WriteString(w, "{}")
			return err
		}
		childIndent := indent + "  "
		if _, err := io.WriteString(w, "{\n"); err != nil {
			return err
		}
		for i, k := range keys {
			val, _ := obj.Get(k)
			if _, err := io.WriteString(w, childIndent); err != nil {
				return err
			}
			keyEnc, err := json.Marshal(k)
			if err != nil {
				return err
			}
			if _, err := w.Write(keyEnc); err != nil {
				return err
			}
			if _, err := io.WriteString(w, ": "); err != nil {
				return err
			}
			if err := writeJSON(w, val, childIndent); err != nil {
				return err
			}
			if i < len(keys)-1 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, indent+"}")
		return err
	default:
		return fmt.Errorf("unknown value kind %v", v.Kind())
	}
}
