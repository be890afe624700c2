// README: Optional field wrapper for partial updates (absent vs set vs cleared).
package types

import "encoding/json"

// Optional distinguishes a field that was not sent from one that was sent,
// and a sent value from an explicit clear.
type Optional[T any] struct {
	Set   bool
	Clear bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func Cleared[T any]() Optional[T] {
	return Optional[T]{Set: true, Clear: true}
}

// UnmarshalJSON marks the field as sent; a JSON null clears it. Fields
// missing from the document are never visited and stay unset.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Clear = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Clear = false
	return json.Unmarshal(data, &o.Value)
}
