package geology

import (
	"bytes"
	"encoding/json"
	"fmt"

	"warpmine/domain/core"
)

// ConfidenceLevel summarizes how well the indicators corroborate each other
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceBand is an interval around the likelihood, clipped to [0, 1]
type ConfidenceBand struct {
	Lower float64         `json:"lower"`
	Upper float64         `json:"upper"`
	Level ConfidenceLevel `json:"level"`
}

// Action is the follow-up recommended for a region
type Action string

const (
	ActionDrill       Action = "drill"
	ActionSurveyFirst Action = "survey_first"
	ActionNone        Action = "none"
)

// ProspectivityResult is the scored outcome for one region
type ProspectivityResult struct {
	RegionID          core.RegionID  `json:"region_id"`
	Likelihood        float64        `json:"likelihood"`
	Confidence        ConfidenceBand `json:"confidence"`
	Rank              int            `json:"rank"`
	Action            Action         `json:"action"`
	Recommendation    string         `json:"recommendation,omitempty"`
	BudgetEstimateUSD float64        `json:"budget_estimate_usd"`
	Features          Features       `json:"features"`
}

// RankedResults is a region-keyed mapping that keeps rank order.
// It marshals to a JSON object whose keys appear rank 1 first.
type RankedResults []ProspectivityResult

// Get looks up a region by id
func (r RankedResults) Get(id core.RegionID) (ProspectivityResult, bool) {
	for _, res := range r {
		if res.RegionID == id {
			return res, true
		}
	}
	return ProspectivityResult{}, false
}

// IDs returns region ids in rank order
func (r RankedResults) IDs() []core.RegionID {
	ids := make([]core.RegionID, len(r))
	for i, res := range r {
		ids[i] = res.RegionID
	}
	return ids
}

func (r RankedResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, res := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(res.RegionID))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object back in document order
func (r *RankedResults) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ranked results: expected object, got %v", tok)
	}

	out := RankedResults{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ranked results: expected string key, got %v", keyTok)
		}
		var res ProspectivityResult
		if err := dec.Decode(&res); err != nil {
			return fmt.Errorf("ranked results: region %s: %w", key, err)
		}
		if res.RegionID == "" {
			res.RegionID = core.RegionID(key)
		}
		out = append(out, res)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Analysis is the full exploration report
type Analysis struct {
	TargetMineral   Mineral         `json:"target_mineral"`
	Regions         RankedResults   `json:"regions"`
	Ranking         []core.RegionID `json:"ranking"`
	Recommendations []string        `json:"recommendations"`
	Summary         string          `json:"summary"`
	Seed            int64           `json:"seed"`
	Synthesized     bool            `json:"synthesized"`
}
