package compaction

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Usage is the token accounting of one completed model request.
type Usage struct {
	TokensIn    int64
	TokensOut   int64
	CacheWrites int64
	CacheReads  int64
}

// Total is the number of tokens the request occupied in the context window.
func (u Usage) Total() int64 {
	return u.TokensIn + u.TokensOut + u.CacheWrites + u.CacheReads
}

var usageFields = []string{"tokensIn", "tokensOut", "cacheWrites", "cacheReads"}

// ParseUsage reads the usage record carried by a request marker. Missing
// fields count as zero.
func ParseUsage(text string) (Usage, error) {
	if !gjson.Valid(text) {
		return Usage{}, wrapError("ParseUsage", ErrMalformedUsage)
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return Usage{}, wrapError("ParseUsage", fmt.Errorf("%w: not an object", ErrMalformedUsage))
	}

	values := make([]int64, len(usageFields))
	for i, field := range usageFields {
		v := root.Get(field)
		switch v.Type {
		case gjson.Null:
		case gjson.Number:
			values[i] = v.Int()
		default:
			return Usage{}, wrapError("ParseUsage", fmt.Errorf("%w: %s is %s", ErrMalformedUsage, field, v.Type))
		}
	}
	return Usage{
		TokensIn:    values[0],
		TokensOut:   values[1],
		CacheWrites: values[2],
		CacheReads:  values[3],
	}, nil
}
