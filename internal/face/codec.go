package face

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireFace carries the fixed fields of the detector's flat face shape.
// Landmarks sit next to them as optional "<name>Position" keys.
type wireFace struct {
	ID                      int      `json:"faceID,omitempty"`
	Bounds                  Bounds   `json:"bounds"`
	RollAngle               *float64 `json:"rollAngle,omitempty"`
	YawAngle                *float64 `json:"yawAngle,omitempty"`
	SmilingProbability      *float64 `json:"smilingProbability,omitempty"`
	LeftEyeOpenProbability  *float64 `json:"leftEyeOpenProbability,omitempty"`
	RightEyeOpenProbability *float64 `json:"rightEyeOpenProbability,omitempty"`
}

// UnmarshalJSON reads the flat detector shape, collecting every known
// landmark key that is present and ignoring anything else.
func (f *Face) UnmarshalJSON(data []byte) error {
	var w wireFace
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("face: %w", err)
	}
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("face: %w", err)
	}
	if _, ok := raw["bounds"]; !ok {
		return fmt.Errorf("face: missing bounds")
	}

	*f = Face{
		ID:                      w.ID,
		Bounds:                  w.Bounds,
		Landmarks:               make(map[Landmark]Point),
		RollAngle:               w.RollAngle,
		YawAngle:                w.YawAngle,
		SmilingProbability:      w.SmilingProbability,
		LeftEyeOpenProbability:  w.LeftEyeOpenProbability,
		RightEyeOpenProbability: w.RightEyeOpenProbability,
	}
	for _, l := range AllLandmarks() {
		msg, ok := raw[l.String()]
		if !ok || string(msg) == "null" {
			continue
		}
		var p Point
		if err := json.Unmarshal(msg, &p); err != nil {
			return fmt.Errorf("face: landmark %s: %w", l, err)
		}
		f.Landmarks[l] = p
	}
	return nil
}

// MarshalJSON writes the same flat shape UnmarshalJSON reads.
func (f Face) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"bounds": f.Bounds,
	}
	if f.ID != 0 {
		out["faceID"] = f.ID
	}
	putFloat(out, "rollAngle", f.RollAngle)
	putFloat(out, "yawAngle", f.YawAngle)
	putFloat(out, "smilingProbability", f.SmilingProbability)
	putFloat(out, "leftEyeOpenProbability", f.LeftEyeOpenProbability)
	putFloat(out, "rightEyeOpenProbability", f.RightEyeOpenProbability)
	for l, p := range f.Landmarks {
		out[l.String()] = p
	}
	return json.Marshal(out)
}

func putFloat(m map[string]interface{}, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

// Decode parses a detector face list.
func Decode(data []byte) ([]Face, error) {
	var faces []Face
	if err := json.Unmarshal(data, &faces); err != nil {
		return nil, err
	}
	return faces, nil
}
