package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the table-backed persisters. Each bucket holds the
// JSON encoding of one Snapshot collection.
const (
	BucketNorthStar   = "north_star"
	BucketObjectives  = "objectives"
	BucketStrategies  = "strategies"
	BucketExperiments = "experiments"
)

// Buckets lists every bucket in write order.
var Buckets = []string{BucketNorthStar, BucketObjectives, BucketStrategies, BucketExperiments}

// EncodeBucket returns the JSON payload for one bucket of the snapshot.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch bucket {
	case BucketNorthStar:
		data, err = json.Marshal(s.NorthStar)
	case BucketObjectives:
		data, err = json.Marshal(s.Objectives)
	case BucketStrategies:
		data, err = json.Marshal(s.Strategies)
	case BucketExperiments:
		data, err = json.Marshal(s.Experiments)
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket fills the matching collection from payload. Unknown buckets
// and empty payloads are ignored.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketNorthStar:
		target = &s.NorthStar
	case BucketObjectives:
		target = &s.Objectives
	case BucketStrategies:
		target = &s.Strategies
	case BucketExperiments:
		target = &s.Experiments
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
