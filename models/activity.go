package models

import (
	"encoding/json"
	"errors"
	"time"
)

// TimeLayout is RFC 3339 with fixed nanosecond width so that timestamp
// strings order lexicographically the same way the instants order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrMissingVerb is returned when a posted activity has no verb
var ErrMissingVerb = errors.New("activity verb cannot be empty or missing")

// ErrMissingObject is returned when a posted activity has no object
var ErrMissingObject = errors.New("activity object cannot be missing")

// ErrMissingObjectType is returned when a posted activity has an object
// with no objectType
var ErrMissingObjectType = errors.New("activity object must have an objectType")

// Actor identifies the authoring identity of an activity. It is bound
// once at creation from the authenticated caller and never changed by
// later updates.
type Actor struct {
	ID          string `json:"id"`
	ObjectType  string `json:"objectType"`
	DisplayName string `json:"displayName"`
}

// Object is the thing an activity acts upon. ID and ObjectType are fixed
// once stored; everything else the client sent rides along in Extra and
// stays mutable.
type Object struct {
	ID         string
	ObjectType string
	Extra      map[string]interface{}
}

// Activity is a single ActivityStreams-shaped resource. The typed fields
// are the ones the server interprets; Extra holds client extension fields
// (mood and friends) verbatim.
type Activity struct {
	ID        string
	Actor     Actor
	Verb      string
	Object    Object
	Published string
	Updated   string
	Extra     map[string]interface{}
}

// Timestamp formats t for the published and updated fields.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NextTimestamp returns a timestamp for now that is strictly greater than
// prev, so updated always advances even when the clock has not.
func NextTimestamp(prev string, now time.Time) string {
	next := Timestamp(now)
	if next > prev {
		return next
	}

	prevTime, err := time.Parse(TimeLayout, prev)
	if err != nil {
		return next
	}
	return Timestamp(prevTime.Add(time.Nanosecond))
}

// Validate checks the creation rules for a client-posted activity. The
// server fills id, actor and the timestamps itself, so only verb and
// object are the client's problem.
func (a *Activity) Validate() error {
	if a.Verb == "" {
		return ErrMissingVerb
	}
	if a.Object.ObjectType == "" && a.Object.ID == "" && len(a.Object.Extra) == 0 {
		return ErrMissingObject
	}
	if a.Object.ObjectType == "" {
		return ErrMissingObjectType
	}
	return nil
}

// ApplyUpdate merges patch into existing and returns the result. The
// identity fields assigned at creation (id, actor, verb, object id and
// type, published) keep their stored values no matter what the patch
// carries; extension fields merge with the patch winning; updated is
// stamped server-side and strictly advances.
func ApplyUpdate(existing Activity, patch Activity, now time.Time) Activity {
	updated := existing

	updated.Object.Extra = mergeExtra(existing.Object.Extra, patch.Object.Extra)
	updated.Extra = mergeExtra(existing.Extra, patch.Extra)
	updated.Updated = NextTimestamp(existing.Updated, now)

	return updated
}

func mergeExtra(existing, patch map[string]interface{}) map[string]interface{} {
	if len(existing) == 0 && len(patch) == 0 {
		return nil
	}

	merged := make(map[string]interface{}, len(existing)+len(patch))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// Clone returns a copy of a safe to hand across a store boundary. The
// extension values themselves are shared, but the maps are fresh so
// callers cannot mutate stored state.
func (a Activity) Clone() Activity {
	c := a
	c.Object.Extra = mergeExtra(a.Object.Extra, nil)
	c.Extra = mergeExtra(a.Extra, nil)
	return c
}

// MarshalJSON flattens Extra beside the typed object fields.
func (o Object) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(o.Extra)+2)
	for k, v := range o.Extra {
		flat[k] = v
	}
	if o.ID != "" {
		flat["id"] = o.ID
	}
	if o.ObjectType != "" {
		flat["objectType"] = o.ObjectType
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits the typed object fields back out of the flat JSON
// object, leaving the rest in Extra.
func (o *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if idRaw, ok := raw["id"]; ok {
		if err := json.Unmarshal(idRaw, &o.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if typeRaw, ok := raw["objectType"]; ok {
		if err := json.Unmarshal(typeRaw, &o.ObjectType); err != nil {
			return err
		}
		delete(raw, "objectType")
	}

	o.Extra = nil
	if len(raw) > 0 {
		o.Extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			o.Extra[k] = val
		}
	}
	return nil
}

// MarshalJSON flattens Extra beside the typed activity fields.
func (a Activity) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(a.Extra)+6)
	for k, v := range a.Extra {
		flat[k] = v
	}
	if a.ID != "" {
		flat["id"] = a.ID
	}
	if a.Actor != (Actor{}) {
		flat["actor"] = a.Actor
	}
	if a.Verb != "" {
		flat["verb"] = a.Verb
	}
	flat["object"] = a.Object
	if a.Published != "" {
		flat["published"] = a.Published
	}
	if a.Updated != "" {
		flat["updated"] = a.Updated
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits the typed activity fields back out of the flat
// JSON object, leaving the rest in Extra.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	stringFields := map[string]*string{
		"id":        &a.ID,
		"verb":      &a.Verb,
		"published": &a.Published,
		"updated":   &a.Updated,
	}
	for key, dst := range stringFields {
		if fieldRaw, ok := raw[key]; ok {
			if err := json.Unmarshal(fieldRaw, dst); err != nil {
				return err
			}
			delete(raw, key)
		}
	}

	if actorRaw, ok := raw["actor"]; ok {
		if err := json.Unmarshal(actorRaw, &a.Actor); err != nil {
			return err
		}
		delete(raw, "actor")
	}
	if objectRaw, ok := raw["object"]; ok {
		if err := json.Unmarshal(objectRaw, &a.Object); err != nil {
			return err
		}
		delete(raw, "object")
	}

	a.Extra = nil
	if len(raw) > 0 {
		a.Extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			a.Extra[k] = val
		}
	}
	return nil
}
