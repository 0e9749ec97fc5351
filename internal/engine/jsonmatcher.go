/**
 * JSON Key-Value Matcher
 *
 * Flattens nested JSON into dot/bracket path-value pairs and matches stored
 * key/value annotations against them through a fixed tier ladder:
 *
 *   exact key (0.95) > exact value (0.9) > partial key (0.8) > partial value (0.7)
 *
 * Tiers are evaluated in priority order across all pairs, so when several
 * tiers are satisfiable the highest one always wins.
 */

package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// JSON match tier confidences.
const (
	jsonExactKeyConfidence     = 0.95
	jsonExactValueConfidence   = 0.9
	jsonPartialKeyConfidence   = 0.8
	jsonPartialValueConfidence = 0.7
)

// jsonMatcher scans json-kind patterns of a corpus record.
type jsonMatcher struct{}

func (jsonMatcher) kind() PatternKind { return PatternJSON }

func (jsonMatcher) match(content *CandidateContent, record *AnnotationRecord) []MatchCandidate {
	if len(content.KeyValues) == 0 {
		return nil
	}

	var candidates []MatchCandidate
	for _, pattern := range record.Annotations {
		if pattern.Kind != PatternJSON {
			continue
		}
		if pattern.JSON == nil || (pattern.JSON.JSONKey == "" && pattern.JSON.JSONValue == "") {
			continue
		}

		confidence, matchType, pair := matchJSONPattern(content.KeyValues, pattern.JSON)
		if confidence == 0 {
			continue
		}

		candidates = append(candidates, MatchCandidate{
			DataID:       record.DataID,
			RuleID:       record.Rule.ID,
			CategoryID:   record.Rule.CategoryID,
			Confidence:   clamp01(confidence),
			EvidenceKind: PatternJSON,
			MatchType:    matchType,
			Snippet:      fmt.Sprintf("%s = %s", pair.Path, pair.Value),
		})
	}
	return candidates
}

// matchJSONPattern walks the tier ladder for one stored pattern and returns
// the confidence, tier label and matched pair of the highest applicable tier.
func matchJSONPattern(pairs []KeyValue, pattern *JSONPattern) (float64, string, KeyValue) {
	key := strings.ToLower(pattern.JSONKey)
	value := strings.ToLower(pattern.JSONValue)

	// Tier 1: exact key match (case-insensitive, against the leaf key or the
	// full flattened path).
	if key != "" {
		for _, p := range pairs {
			if strings.ToLower(p.Path) == key || strings.ToLower(leafKey(p.Path)) == key {
				return jsonExactKeyConfidence, "exact_key", p
			}
		}
	}

	// Tier 2: exact value match.
	if value != "" {
		for _, p := range pairs {
			if strings.ToLower(p.Value) == value {
				return jsonExactValueConfidence, "exact_value", p
			}
		}
	}

	// Tier 3: partial key containment, either direction.
	if key != "" {
		for _, p := range pairs {
			lp := strings.ToLower(p.Path)
			if strings.Contains(lp, key) || strings.Contains(key, lp) {
				return jsonPartialKeyConfidence, "partial_key", p
			}
		}
	}

	// Tier 4: partial value containment, either direction.
	if value != "" {
		for _, p := range pairs {
			lv := strings.ToLower(p.Value)
			if lv == "" {
				continue
			}
			if strings.Contains(lv, value) || strings.Contains(value, lv) {
				return jsonPartialValueConfidence, "partial_value", p
			}
		}
	}

	return 0, "", KeyValue{}
}

// leafKey returns the final path segment without its array index.
func leafKey(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.Index(path, "["); i >= 0 {
		path = path[:i]
	}
	return path
}

// FlattenJSON converts a decoded JSON document into a flat list of
// path/value pairs. Nested object keys are dot-joined; array entries expand
// as path[index], recursing into object and array items. Scalars render with
// strconv/fmt so values compare as strings.
func FlattenJSON(doc interface{}) []KeyValue {
	var pairs []KeyValue
	flattenValue("", doc, &pairs)
	return pairs
}

func flattenValue(path string, v interface{}, out *[]KeyValue) {
	switch val := v.(type) {
	case map[string]interface{}:
		// Sort keys so flattening is deterministic across runs.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			flattenValue(child, val[k], out)
		}
	case []interface{}:
		for i, item := range val {
			flattenValue(fmt.Sprintf("%s[%d]", path, i), item, out)
		}
	default:
		*out = append(*out, KeyValue{Path: path, Value: scalarString(v)})
	}
}

// scalarString renders a JSON scalar the way it reads in the document.
func scalarString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
