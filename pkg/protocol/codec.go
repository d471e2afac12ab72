package protocol

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
)

// RootRefKey is the key of the object an element handle serializes to.
const RootRefKey = "_root"

// RootReferencer is implemented by element handles. A handle embedded in a
// payload is sent as {"_root": RootRef()} so the renderer can mount that
// root's content in place.
type RootReferencer interface {
	RootRef() string
}

// Serializer converts a value the JSON encoder cannot handle (or should not
// handle verbatim) into one it can. It returns false when it does not apply.
type Serializer func(v any) (any, bool)

// Codec encodes actions and snapshots to the JSON wire format.
type Codec struct {
	serializers []Serializer
}

type normalizer interface {
	normalize(n func(any) any)
}

// NewCodec returns a codec with the given serializers tried first, followed
// by the built-in root reference and queue serializers.
func NewCodec(serializers ...Serializer) *Codec {
	c := &Codec{}
	c.serializers = append(c.serializers, serializers...)
	c.serializers = append(c.serializers, serializeRootRef, serializeQueue)
	return c
}

// Marshal normalizes v (when it is an action, view or snapshot) and encodes it.
func (c *Codec) Marshal(v any) ([]byte, error) {
	if n, ok := v.(normalizer); ok {
		n.normalize(c.Normalize)
	} else {
		v = c.Normalize(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return data, nil
}

// Normalize returns a copy of v with every serializer applied, recursing into
// maps and slices. The input is never modified.
func (c *Codec) Normalize(v any) any {
	for _, s := range c.serializers {
		if out, ok := s(v); ok {
			return c.Normalize(out)
		}
	}
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(c.Normalize, t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = c.Normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeMap(c.Normalize, item)
		}
		return out
	}
	return v
}

func normalizeMap(n func(any) any, m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = n(v)
	}
	return out
}

func serializeRootRef(v any) (any, bool) {
	r, ok := v.(RootReferencer)
	if !ok {
		return nil, false
	}
	return map[string]any{RootRefKey: r.RootRef()}, true
}

func serializeQueue(v any) (any, bool) {
	l, ok := v.(*list.List)
	if !ok {
		return nil, false
	}
	out := make([]any, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out, true
}

// ErrInvalidMessage is returned when an inbound message cannot be decoded.
var ErrInvalidMessage = errors.New("protocol: invalid message")

// ErrUnknownMessageType is returned for a message type outside the closed set.
var ErrUnknownMessageType = errors.New("protocol: unknown message type")
