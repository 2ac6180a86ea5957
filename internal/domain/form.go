package domain

import "encoding/json"

// FormState holds wizard answers keyed by field_name, remembering the order
// in which keys were first written.
type FormState struct {
	keys   []string
	values map[string]Value
}

func NewFormState() *FormState {
	return &FormState{values: make(map[string]Value)}
}

func (s *FormState) Set(name string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	if _, ok := s.values[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.values[name] = v
}

func (s *FormState) Get(name string) (Value, bool) {
	if s == nil || s.values == nil {
		return Value{}, false
	}
	v, ok := s.values[name]
	return v, ok
}

func (s *FormState) Delete(name string) {
	if _, ok := s.values[name]; !ok {
		return
	}
	delete(s.values, name)
	for i, k := range s.keys {
		if k == name {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in first-write order.
func (s *FormState) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *FormState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *FormState) Clone() *FormState {
	out := NewFormState()
	for _, k := range s.Keys() {
		out.Set(k, s.values[k])
	}
	return out
}

// Values exposes a copy of the state as a plain bag.
func (s *FormState) Values() Values {
	out := make(Values, s.Len())
	for _, k := range s.Keys() {
		out[k] = s.values[k]
	}
	return out
}

func (s *FormState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}
